package scrape

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/foomo/pocketguide-ada/guide"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tilePage = `<html><head><title>Pocket Guide</title></head><body>
<img class="w3-image w3-width-100" src="https://cdn.example.edu/hero.png">
<div class="sectiontext">
  Student Resources
</div>
<div class="child w3-card tile"><a href="campusm://pocketguide?pg_code=advising"><img src="https://cdn.example.edu/advisor.png"><div class="tiletext"> Advising </div></a></div>
<div class="child w3-card tile"><a href="https://library.example.edu"><div class="tiletext">Library</div></a></div>
<div class="child w3-card tile"><a><img src="https://cdn.example.edu/events.png"><div class="tiletext">Events</div></a></div>
<div class="child w3-card tile"><span>no link</span></div>
</body></html>`

const listPage = `<html><body>
<img class="w3-image w3-width-100" src="https://cdn.example.edu/hero.png">
<div class="exlheader"><b> Career Planning </b></div>
<table class="w3-table w3-striped w3-bordered w3-border"><tr><td>
<a class="exllink" href="https://careers.example.edu">Career Center</a>
<a class="exllink" href="https://jobs.example.edu">   </a>
<a class="exllink" href="https://intern.example.edu">
  Internships
</a>
</td></tr></table>
</body></html>`

func TestParseTilePage(t *testing.T) {
	page, err := Parse(tilePage)
	require.NoError(t, err)

	assert.False(t, page.IsListPage())
	assert.Equal(t, "Student Resources", page.Title)
	assert.Equal(t, "https://cdn.example.edu/hero.png", page.HeroImage)
	require.Len(t, page.Tiles, 3, spew.Sdump(page.Tiles))

	assert.Equal(t, "Advising", page.Tiles[0].Text)
	assert.Equal(t, "https://cdn.example.edu/advisor.png", page.Tiles[0].Icon)
	assert.Equal(t, "campusm://pocketguide?pg_code=advising", page.Tiles[0].Href)
	assert.True(t, page.Tiles[0].Expandable())

	assert.Equal(t, "Library", page.Tiles[1].Text)
	assert.Empty(t, page.Tiles[1].Icon)

	assert.Equal(t, "#", page.Tiles[2].Href)

	for _, tile := range page.Tiles {
		assert.Equal(t, guide.ModeTiles, tile.Mode())
		assert.Nil(t, tile.SubTiles())
		assert.Empty(t, tile.SubAddText())
		assert.False(t, tile.UseDirect())
	}
}

func TestParseListPage(t *testing.T) {
	page, err := Parse(listPage)
	require.NoError(t, err)

	assert.True(t, page.IsListPage())
	assert.Equal(t, "Career Planning", page.Title)
	assert.Empty(t, page.HeroImage)
	require.Len(t, page.Tiles, 2, spew.Sdump(page.Tiles))
	assert.Equal(t, "Career Center", page.Tiles[0].Text)
	assert.Equal(t, "Internships", page.Tiles[1].Text)
	assert.Equal(t, "https://intern.example.edu", page.Tiles[1].Href)
	for _, tile := range page.Tiles {
		assert.Empty(t, tile.Icon)
		assert.Equal(t, guide.ModeList, tile.Mode())
	}
}

func TestParseWithoutTilesOrHeader(t *testing.T) {
	page, err := Parse(`<p>Just some text</p>`)
	require.NoError(t, err)
	assert.False(t, page.IsListPage())
	assert.Equal(t, guide.Untitled, page.Title)
	assert.Empty(t, page.Tiles)
}

func TestParseListHeaderWithoutBold(t *testing.T) {
	page, err := Parse(`<div class="exlheader">Header</div><a class="exllink" href="/x">X</a>`)
	require.NoError(t, err)
	assert.True(t, page.IsListPage())
	assert.Equal(t, guide.Untitled, page.Title)
	require.Len(t, page.Tiles, 1)
}

func TestParseEmpty(t *testing.T) {
	for _, src := range []string{"", "   \n\t"} {
		page, err := Parse(src)
		assert.Nil(t, page)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.True(t, errors.Is(err, ErrEmptyDocument))
	}
}

func TestParseSubpage(t *testing.T) {
	sub, err := ParseSubpage(listPage)
	require.NoError(t, err)
	assert.True(t, sub.IsList)
	assert.Len(t, sub.Tiles, 2)

	_, err = ParseSubpage("")
	require.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latin1.html")
	src := []byte("<html><head><meta charset=\"iso-8859-1\"></head><body><div class=\"sectiontext\">Caf\xe9</div></body></html>")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	page, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Café", page.Title)

	_, err = ParseFile(filepath.Join(dir, "missing.html"))
	require.Error(t, err)
	var parseErr *ParseError
	assert.False(t, errors.As(err, &parseErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDeriveName(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"title", `<title>My Page</title>`, "My_Page"},
		{"header wins", `<title>T</title><div class="exlheader"><b class="x">Career Plan</b></div>`, "Career_Plan"},
		{"section text", "<h1>H</h1><div class=\"sectiontext\">Student\n  Life</div>", "Student_Life"},
		{"multi-line title", "<title>\nLine one\nline two\n</title>", "Line_one_line_two"},
		{"h1", `<h1>Heading</h1><b>bold</b>`, "Heading"},
		{"bold", `<p><b style="x">Bold Text</b></p>`, "Bold_Text"},
		{"illegal chars", `<title>a/b: c?*</title>`, "ab_c"},
		{"skips empty match", `<title> </title><h1>Real</h1>`, "Real"},
		{"truncated", `<title>` + strings.Repeat("x", 80) + `</title>`, strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveName(tt.src))
		})
	}
}

func TestDeriveNameFallback(t *testing.T) {
	saved := now
	defer func() { now = saved }()
	now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local) }

	assert.Equal(t, "HTML_20250304_050607", DeriveName("<p>nothing here</p>"))
	assert.Equal(t, "HTML_20250304_050607", DeriveName(`<title>???</title>`))
	assert.Equal(t, "HTML_20250304_050607", DeriveName(""))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, PageTile, Classify(tilePage))
	assert.Equal(t, PageList, Classify(listPage))
	assert.Equal(t, PageText, Classify(`<p>text</p>`))
	assert.Equal(t, PageTile, Classify(listPage+tilePage))
	assert.Equal(t, PageText, Classify(`<div class="w3-table w3-striped w3-bordered w3-border"></div>`))
	assert.Equal(t, "tile", PageTile.String())
	assert.Equal(t, "list", PageList.String())
	assert.Equal(t, "text", PageText.String())
}
