package guide

import "fmt"

// InvalidModeError is returned when a mode transition is not allowed.
// The tile is left unchanged.
type InvalidModeError struct {
	Tile   string
	Mode   Mode
	Reason string
}

func (e *InvalidModeError) Error() string {
	if e.Tile == "" {
		return fmt.Sprintf("invalid mode %q: %s", e.Mode, e.Reason)
	}
	return fmt.Sprintf("invalid mode %q for tile %q: %s", e.Mode, e.Tile, e.Reason)
}

// AttachSubpage installs a parsed sub-page and picks list or tiles
// presentation from its shape.
func (t *Tile) AttachSubpage(sub Subpage) {
	tiles := make([]Tile, len(sub.Tiles))
	copy(tiles, sub.Tiles)
	t.sub = &Subpage{Tiles: tiles, IsList: sub.IsList}
	t.subIsList = sub.IsList
	if sub.IsList {
		t.mode = ModeList
	} else {
		t.mode = ModeTiles
	}
}

// SetMode changes the presentation of the tile.
//
// direct drops the sub-page and the note, text_only drops the sub-page but
// keeps the note, list and tiles only switch presentation of an attached
// sub-page. tiles is refused once a list-shaped sub-page was attached.
func (t *Tile) SetMode(mode Mode) error {
	switch mode {
	case ModeDirect:
		t.mode = ModeDirect
		t.sub = nil
		t.note = ""
	case ModeTextOnly:
		t.mode = ModeTextOnly
		t.sub = nil
	case ModeTiles:
		if t.subIsList {
			return &InvalidModeError{Tile: t.Text, Mode: mode, Reason: "grid layout is not available for list-style sub-pages"}
		}
		fallthrough
	case ModeList:
		if t.sub == nil {
			return &InvalidModeError{Tile: t.Text, Mode: mode, Reason: "no sub-page uploaded"}
		}
		t.mode = mode
	default:
		return &InvalidModeError{Tile: t.Text, Mode: mode, Reason: "unknown mode"}
	}
	return nil
}

// SetNote replaces the text shown above the sub-tiles.
func (t *Tile) SetNote(text string) {
	t.note = text
}

// Redo returns the tile to its unannotated state. Whether the last uploaded
// sub-page was a list survives, so tiles stays refused until a grid-shaped
// sub-page is attached again.
func (t *Tile) Redo() {
	t.mode = ModeTiles
	t.sub = nil
	t.note = ""
}
