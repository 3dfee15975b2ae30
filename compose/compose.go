// Package compose renders an annotated pocket guide page as an accessible
// HTML document.
package compose

import (
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/foomo/pocketguide-ada/guide"
)

//go:embed assets/page.html.tmpl assets/style.css assets/script.js
var assetsFS embed.FS

// tilesPerRow is the number of tiles in one output row.
const tilesPerRow = 3

// OutputPrefix is prepended to every exported file name.
const OutputPrefix = "ADA_"

var (
	pageTemplate = template.Must(template.ParseFS(assetsFS, "assets/page.html.tmpl"))
	style        = template.CSS(mustAsset("assets/style.css"))
	script       = template.JS(mustAsset("assets/script.js"))
)

func mustAsset(name string) string {
	b, err := assetsFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Options carries operator input that is not part of the parsed page.
type Options struct {
	// AdditionalText is shown above the tiles, one paragraph per line.
	AdditionalText string
}

type paragraph struct {
	Text  string
	Blank bool
}

type link struct {
	Text string
	Href template.HTMLAttr
}

type tileView struct {
	Text string
	Icon template.HTMLAttr
	Href template.HTMLAttr
}

type cell struct {
	tileView
	SectionID  string
	Expandable bool
}

type section struct {
	ID    string
	Title string
	Note  []paragraph
	List  []link
	Grid  []tileView
}

type row struct {
	Cells    []cell
	Sections []section
}

type pageData struct {
	Title     string
	HeroImage template.HTMLAttr
	Intro     []paragraph
	IsList    bool
	Links     []link
	Rows      []row
	Style     template.CSS
	Script    template.JS
}

// Compose renders page. Hrefs and image sources are emitted verbatim; the
// source export is trusted.
func Compose(page *guide.Page, opts Options) (string, error) {
	data := pageData{
		Title:     page.Title,
		HeroImage: optionalSrc(page.HeroImage),
		Intro:     paragraphs(opts.AdditionalText),
		IsList:    page.IsListPage(),
		Style:     style,
		Script:    script,
	}
	if page.IsListPage() {
		for _, t := range page.Tiles {
			data.Links = append(data.Links, link{Text: t.Text, Href: verbatimAttr("href", t.Href)})
		}
	} else {
		data.Rows = rows(page.Tiles)
	}

	var sb strings.Builder
	if err := pageTemplate.ExecuteTemplate(&sb, "page", data); err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	return sb.String(), nil
}

// OutputBase returns the file name, without extension, for an exported page.
func OutputBase(title string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return OutputPrefix + r.Replace(title)
}

// Expands reports whether t renders as an expandable control.
func Expands(t *guide.Tile) bool {
	return t.Expandable() && !t.UseDirect() && (len(t.SubTiles()) > 0 || t.Mode() == guide.ModeTextOnly)
}

func rows(tiles []*guide.Tile) []row {
	var (
		out      []row
		counters = map[string]int{}
	)
	for i, t := range tiles {
		if i%tilesPerRow == 0 {
			out = append(out, row{})
		}
		r := &out[len(out)-1]

		slug := slugify(t.Text)
		counters[slug]++
		id := fmt.Sprintf("%s-%d", slug, counters[slug])

		c := cell{tileView: view(t.Text, t.Icon, t.Href), SectionID: id, Expandable: Expands(t)}
		r.Cells = append(r.Cells, c)
		if c.Expandable {
			r.Sections = append(r.Sections, expandedSection(id, t))
		}
	}
	return out
}

func expandedSection(id string, t *guide.Tile) section {
	s := section{ID: id, Title: t.Text, Note: paragraphs(t.SubAddText())}
	if t.Mode() == guide.ModeTextOnly {
		return s
	}
	for _, sub := range t.SubTiles() {
		if t.Mode() == guide.ModeList {
			s.List = append(s.List, link{Text: sub.Text, Href: verbatimAttr("href", sub.Href)})
		} else {
			s.Grid = append(s.Grid, view(sub.Text, sub.Icon, sub.Href))
		}
	}
	return s
}

func view(text, icon, href string) tileView {
	return tileView{Text: text, Icon: optionalSrc(icon), Href: verbatimAttr("href", href)}
}

// verbatimAttr renders name="value" with HTML escaping only. URL attributes
// filled by html/template get percent-encoded, which breaks campusm:// codes.
func verbatimAttr(name, value string) template.HTMLAttr {
	return template.HTMLAttr(name + `="` + html.EscapeString(value) + `"`)
}

// optionalSrc is empty when there is no image, so templates can test it.
func optionalSrc(src string) template.HTMLAttr {
	if src == "" {
		return ""
	}
	return verbatimAttr("src", src)
}

func slugify(label string) string {
	return strings.ReplaceAll(strings.ToLower(label), " ", "-")
}

// paragraphs splits text into lines; whitespace-only lines stay as blank
// paragraphs.
func paragraphs(text string) []paragraph {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	out := make([]paragraph, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			out[i] = paragraph{Blank: true}
		} else {
			out[i] = paragraph{Text: line}
		}
	}
	return out
}
