// Package guide holds the pocket guide page model and the per-tile annotation
// state machine. Tile annotation state is unexported; it only changes through
// AttachSubpage, SetMode, SetNote and Redo.
package guide

import (
	"fmt"
	"strings"
)

// InternalRefPrefix marks a tile href that points at another pocket guide page.
const InternalRefPrefix = "campusm://pocketguide?pg_code="

// Untitled is used when a page carries no usable title.
const Untitled = "Untitled"

// IsInternalRef reports whether href references another pocket guide page.
func IsInternalRef(href string) bool {
	return strings.HasPrefix(href, InternalRefPrefix)
}

// Mode is the presentation chosen for a tile.
type Mode string

const (
	ModeTiles    Mode = "tiles"
	ModeList     Mode = "list"
	ModeDirect   Mode = "direct"
	ModeTextOnly Mode = "text_only"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case ModeTiles, ModeList, ModeDirect, ModeTextOnly:
		return m, nil
	}
	return "", &InvalidModeError{Mode: Mode(s), Reason: "unknown mode"}
}

// State is the annotation state of a tile.
type State int

const (
	Unresolved State = iota
	Direct
	TextOnly
	Resolved
)

func (s State) String() string {
	switch s {
	case Direct:
		return "direct"
	case TextOnly:
		return "text_only"
	case Resolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Subpage is the parsed content of a page an expandable tile points to.
// Its tiles are never expandable themselves.
type Subpage struct {
	Tiles  []Tile
	IsList bool
}

// Tile is one navigation unit of a page.
type Tile struct {
	Text string
	Icon string
	Href string

	mode      Mode
	sub       *Subpage
	note      string
	subIsList bool
}

// NewTile creates an unannotated tile in the given default mode.
func NewTile(text, icon, href string, mode Mode) *Tile {
	return &Tile{Text: text, Icon: icon, Href: href, mode: mode}
}

func (t *Tile) Mode() Mode         { return t.mode }
func (t *Tile) SubAddText() string { return t.note }
func (t *Tile) SubIsList() bool    { return t.subIsList }
func (t *Tile) UseDirect() bool    { return t.mode == ModeDirect }

// Expandable reports whether the tile references another pocket guide page.
func (t *Tile) Expandable() bool { return IsInternalRef(t.Href) }

// SubTiles returns the attached sub-page tiles, nil while none is attached.
func (t *Tile) SubTiles() []Tile {
	if t.sub == nil {
		return nil
	}
	return t.sub.Tiles
}

// State derives the tagged annotation state.
func (t *Tile) State() State {
	switch {
	case t.mode == ModeDirect:
		return Direct
	case t.mode == ModeTextOnly:
		return TextOnly
	case t.sub != nil:
		return Resolved
	default:
		return Unresolved
	}
}

// Resolved reports whether the tile may be exported.
func (t *Tile) Resolved() bool { return t.State() != Unresolved }

func (t *Tile) String() string {
	return fmt.Sprintf("%q (%s, %s)", t.Text, t.State(), t.mode)
}

// Page is the normalized form of one pocket guide document.
type Page struct {
	Title     string
	HeroImage string
	Tiles     []*Tile

	isList bool
}

// NewPage creates a page; the list flag cannot change afterwards.
func NewPage(title, heroImage string, tiles []*Tile, isList bool) *Page {
	if title == "" {
		title = Untitled
	}
	return &Page{Title: title, HeroImage: heroImage, Tiles: tiles, isList: isList}
}

// IsListPage reports whether the source used a link list instead of card tiles.
func (p *Page) IsListPage() bool { return p.isList }

// Subpage folds the page into sub-page content for another tile.
func (p *Page) Subpage() Subpage {
	tiles := make([]Tile, len(p.Tiles))
	for i, t := range p.Tiles {
		tiles[i] = Tile{Text: t.Text, Icon: t.Icon, Href: t.Href, mode: t.mode}
	}
	return Subpage{Tiles: tiles, IsList: p.isList}
}

// Unresolved returns the indexes of expandable tiles that still need annotation.
func (p *Page) Unresolved() []int {
	var idx []int
	for i, t := range p.Tiles {
		if t.Expandable() && !t.Resolved() {
			idx = append(idx, i)
		}
	}
	return idx
}

// AllResolved reports whether every expandable tile is resolved.
func (p *Page) AllResolved() bool {
	return len(p.Unresolved()) == 0
}
