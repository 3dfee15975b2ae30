package vo

import "time"

type Markdown string

type SubTile struct {
	Text string `json:"text"`
	Icon string `json:"icon,omitempty"`
	Href string `json:"href"`
}

type TileStatus struct {
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Icon       string    `json:"icon,omitempty"`
	Href       string    `json:"href"`
	Expandable bool      `json:"expandable"`
	State      string    `json:"state"` // unresolved, direct, text_only or resolved
	Mode       string    `json:"mode"`
	SubIsList  bool      `json:"subIsList,omitempty"`
	SubAddText string    `json:"subAddText,omitempty"`
	SubTiles   []SubTile `json:"subTiles,omitempty"`
}

type PageStatus struct {
	Title          string       `json:"title"`
	HeroImage      string       `json:"heroImage,omitempty"`
	IsListPage     bool         `json:"isListPage"`
	AdditionalText string       `json:"additionalText,omitempty"`
	Ready          bool         `json:"ready"`      // every expandable tile is resolved
	Unresolved     []int        `json:"unresolved"` // indexes of tiles blocking export
	Tiles          []TileStatus `json:"tiles"`
}

type ExportResult struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

type SaveResult struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	PageType string `json:"pageType"`
}

type Preview struct {
	Markdown Markdown          `json:"markdown"`
	Images   map[string]string `json:"images,omitempty"` // image URL -> local file
}

type EventType string

const (
	EventPageLoaded   EventType = "page_loaded"
	EventTileResolved EventType = "tile_resolved"
	EventTileUpdated  EventType = "tile_updated"
	EventTileReset    EventType = "tile_reset"
	EventExported     EventType = "exported"
	EventSnippetSaved EventType = "snippet_saved"
)

type Event struct {
	Type      EventType `json:"type"`
	TileIndex *int      `json:"tileIndex,omitempty"`
	Message   string    `json:"message"`
	Path      string    `json:"path,omitempty"`
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
}
