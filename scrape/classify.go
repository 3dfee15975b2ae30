package scrape

import "regexp"

// PageType is the coarse shape of a pocket guide page.
type PageType int

const (
	PageText PageType = iota
	PageList
	PageTile
)

// String returns the name used in saved file names.
func (p PageType) String() string {
	switch p {
	case PageTile:
		return "tile"
	case PageList:
		return "list"
	default:
		return "text"
	}
}

var (
	tileMarker = regexp.MustCompile(`class="child w3-card tile"`)
	listMarker = regexp.MustCompile(`(?s)<table.*class="w3-table w3-striped w3-bordered w3-border"`)
)

// Classify tags raw HTML by the first marker found: card tiles, then the
// striped bordered table, else plain text.
func Classify(src string) PageType {
	switch {
	case tileMarker.MatchString(src):
		return PageTile
	case listMarker.MatchString(src):
		return PageList
	default:
		return PageText
	}
}
