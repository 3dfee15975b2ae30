// Package scrape reads campus portal pocket guide exports: it parses pages
// into the guide model, derives file names and classifies page shapes.
package scrape

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/foomo/pocketguide-ada/guide"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ErrEmptyDocument is wrapped by ParseError when there is nothing to parse.
var ErrEmptyDocument = errors.New("empty document")

// ParseError reports input that does not yield a usable document tree.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse HTML: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse builds a page from raw pocket guide HTML.
func Parse(src string) (*guide.Page, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &ParseError{Err: ErrEmptyDocument}
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return parseDocument(doc), nil
}

// ParseReader decodes r on a best effort basis, using contentType and any
// <meta charset> as hints, and parses the result.
func ParseReader(r io.Reader, contentType string) (*guide.Page, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	body, err := io.ReadAll(decoded)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return Parse(string(body))
}

// ParseFile reads and parses an HTML file.
func ParseFile(path string) (*guide.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseReader(bytes.NewReader(data), "text/html")
}

// ParseSubpage parses a page that will be folded into an expandable tile.
func ParseSubpage(src string) (guide.Subpage, error) {
	page, err := Parse(src)
	if err != nil {
		return guide.Subpage{}, err
	}
	return page.Subpage(), nil
}

func parseDocument(doc *html.Node) *guide.Page {
	var tiles []*guide.Tile
	for _, card := range findAll(doc, "div", "child", "w3-card", "tile") {
		a := findFirst(card, "a")
		if a == nil {
			continue
		}
		href, ok := lookupAttr(a, "href")
		if !ok {
			href = "#"
		}
		var icon string
		if img := findFirst(a, "img"); img != nil {
			icon = attr(img, "src")
		}
		text := trimmedText(findFirst(a, "div", "tiletext"))
		tiles = append(tiles, guide.NewTile(text, icon, href, guide.ModeTiles))
	}

	title := guide.Untitled
	if section := findFirst(doc, "div", "sectiontext"); section != nil {
		title = trimmedText(section)
	}

	var hero string
	if img := findFirst(doc, "img", "w3-image", "w3-width-100"); img != nil {
		hero = attr(img, "src")
	}

	if len(tiles) > 0 {
		return guide.NewPage(title, hero, tiles, false)
	}

	header := findFirst(doc, "div", "exlheader")
	if header == nil {
		return guide.NewPage(title, hero, nil, false)
	}
	title = trimmedText(findFirst(header, "b"))
	for _, a := range findAll(doc, "a", "exllink") {
		text := trimmedText(a)
		if text == "" {
			continue
		}
		href, ok := lookupAttr(a, "href")
		if !ok {
			href = "#"
		}
		tiles = append(tiles, guide.NewTile(text, "", href, guide.ModeList))
	}
	return guide.NewPage(title, "", tiles, true)
}
