package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/foomo/pocketguide-ada/guide"
	"github.com/foomo/pocketguide-ada/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const Version = "0.1.0"

type LoadPageRequest struct {
	HTML string `json:"html"` // raw main page HTML
	Path string `json:"path"` // or a file to read it from
}

type UploadSubpageRequest struct {
	Index *int   `json:"index"`
	HTML  string `json:"html"`
	Path  string `json:"path"`
}

type SubpageUpload struct {
	Index int    `json:"index"`
	HTML  string `json:"html"`
}

type UploadSubpagesRequest struct {
	Pages []SubpageUpload `json:"pages"`
}

type SetModeRequest struct {
	Index *int   `json:"index"`
	Mode  string `json:"mode"`
}

type SetNoteRequest struct {
	Index *int   `json:"index"`
	Text  string `json:"text"`
}

type RedoRequest struct {
	Index *int `json:"index"`
}

type SetAdditionalTextRequest struct {
	Text string `json:"text"`
}

type StatusRequest struct{}

type PreviewRequest struct{}

type ExportRequest struct {
	Dir string `json:"dir"` // configured output directory when empty
}

type SaveSnippetRequest struct {
	HTML   string `json:"html"`
	Folder string `json:"folder"` // configured snippet directory when empty
}

// NewServer creates the MCP server exposing the conversion workflow. The
// snippet tool is only registered when a saver is provided.
func NewServer(converter service.Converter, saver service.Saver) *server.MCPServer {
	s := server.NewMCPServer(
		"Pocket Guide ADA Converter",
		Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("load_page",
		mcp.WithDescription("Load the main pocket guide page. Replaces the current page and all annotations."),
		mcp.WithString("html", mcp.Description("Raw HTML of the main page")),
		mcp.WithString("path", mcp.Description("Path of an HTML file to load instead of html")),
	), mcp.NewTypedToolHandler(getLoadPageHandler(converter)))

	s.AddTool(mcp.NewTool("upload_subpage",
		mcp.WithDescription("Attach the pocket guide page an expandable tile links to"),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Index of the tile on the main page")),
		mcp.WithString("html", mcp.Description("Raw HTML of the sub-page")),
		mcp.WithString("path", mcp.Description("Path of an HTML file to read instead of html")),
	), mcp.NewTypedToolHandler(getUploadSubpageHandler(converter)))

	s.AddTool(mcp.NewTool("upload_subpages",
		mcp.WithDescription("Attach several sub-pages at once. Pages that fail to parse are reported and left unresolved."),
		mcp.WithArray("pages",
			mcp.Required(),
			mcp.Description("Sub-pages by tile index"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"index": map[string]any{"type": "number"},
					"html":  map[string]any{"type": "string"},
				},
				"required": []string{"index", "html"},
			}),
		),
	), mcp.NewTypedToolHandler(getUploadSubpagesHandler(converter)))

	s.AddTool(mcp.NewTool("set_mode",
		mcp.WithDescription("Choose how an expandable tile is exported"),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Index of the tile on the main page")),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Enum(string(guide.ModeTiles), string(guide.ModeList), string(guide.ModeDirect), string(guide.ModeTextOnly)),
			mcp.Description("tiles or list need an attached sub-page, direct keeps the plain link, text_only shows only the note"),
		),
	), mcp.NewTypedToolHandler(getSetModeHandler(converter)))

	s.AddTool(mcp.NewTool("set_note",
		mcp.WithDescription("Set the free text shown above the content of an expandable tile"),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Index of the tile on the main page")),
		mcp.WithString("text", mcp.Description("Note text, blank lines separate paragraphs")),
	), mcp.NewTypedToolHandler(getSetNoteHandler(converter)))

	s.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Reset an expandable tile to unresolved"),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Index of the tile on the main page")),
	), mcp.NewTypedToolHandler(getRedoHandler(converter)))

	s.AddTool(mcp.NewTool("set_additional_text",
		mcp.WithDescription("Set the introduction text shown below the hero image"),
		mcp.WithString("text", mcp.Description("Introduction text, blank lines separate paragraphs")),
	), mcp.NewTypedToolHandler(getSetAdditionalTextHandler(converter)))

	s.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Show the loaded page, every tile state and whether export is possible"),
	), mcp.NewTypedToolHandler(getStatusHandler(converter)))

	s.AddTool(mcp.NewTool("preview",
		mcp.WithDescription("Render the current page as markdown"),
	), mcp.NewTypedToolHandler(getPreviewHandler(converter)))

	s.AddTool(mcp.NewTool("export",
		mcp.WithDescription("Write the ADA page. Rejected while expandable tiles are unresolved."),
		mcp.WithString("dir", mcp.Description("Output directory, defaults to the configured one")),
	), mcp.NewTypedToolHandler(getExportHandler(converter)))

	if saver != nil {
		s.AddTool(mcp.NewTool("save_snippet",
			mcp.WithDescription("Save a raw HTML snippet under a name derived from its content"),
			mcp.WithString("html", mcp.Required(), mcp.Description("The HTML to save")),
			mcp.WithString("folder", mcp.Description("Target folder, defaults to the configured one")),
		), mcp.NewTypedToolHandler(getSaveSnippetHandler(saver)))
	}

	return s
}

func jsonResult(v any) *mcp.CallToolResult {
	responseBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err))
	}
	return mcp.NewToolResultText(string(responseBytes))
}

func remoteFileError(arg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(arg + " is only accepted from local clients, send the content instead")
}

func requireIndex(index *int) (int, *mcp.CallToolResult) {
	if index == nil {
		return 0, mcp.NewToolResultError("index is required")
	}
	return *index, nil
}

func getLoadPageHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args LoadPageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args LoadPageRequest) (*mcp.CallToolResult, error) {
		if (args.HTML == "") == (args.Path == "") {
			return mcp.NewToolResultError("exactly one of html or path is required"), nil
		}
		if args.Path != "" && !localCaller(ctx) {
			return remoteFileError("path"), nil
		}
		var err error
		var status any
		if args.Path != "" {
			status, err = converter.LoadPageFile(args.Path)
		} else {
			status, err = converter.LoadPage(args.HTML)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load page: %v", err)), nil
		}
		return jsonResult(status), nil
	}
}

func getUploadSubpageHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args UploadSubpageRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args UploadSubpageRequest) (*mcp.CallToolResult, error) {
		index, invalid := requireIndex(args.Index)
		if invalid != nil {
			return invalid, nil
		}
		if (args.HTML == "") == (args.Path == "") {
			return mcp.NewToolResultError("exactly one of html or path is required"), nil
		}
		if args.Path != "" && !localCaller(ctx) {
			return remoteFileError("path"), nil
		}
		var err error
		var status any
		if args.Path != "" {
			status, err = converter.UploadSubpageFile(index, args.Path)
		} else {
			status, err = converter.UploadSubpage(index, args.HTML)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to upload sub-page: %v", err)), nil
		}
		return jsonResult(status), nil
	}
}

func getUploadSubpagesHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args UploadSubpagesRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args UploadSubpagesRequest) (*mcp.CallToolResult, error) {
		if len(args.Pages) == 0 {
			return mcp.NewToolResultError("pages is required"), nil
		}
		pages := make(map[int]string, len(args.Pages))
		for _, page := range args.Pages {
			if _, dup := pages[page.Index]; dup {
				return mcp.NewToolResultError(fmt.Sprintf("tile %d is listed twice", page.Index)), nil
			}
			pages[page.Index] = page.HTML
		}
		status, err := converter.UploadSubpages(ctx, pages)
		if err != nil {
			if status.Tiles == nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to upload sub-pages: %v", err)), nil
			}
			return jsonResult(struct {
				Status any    `json:"status"`
				Errors string `json:"errors"`
			}{status, err.Error()}), nil
		}
		return jsonResult(status), nil
	}
}

func getSetModeHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args SetModeRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args SetModeRequest) (*mcp.CallToolResult, error) {
		index, invalid := requireIndex(args.Index)
		if invalid != nil {
			return invalid, nil
		}
		if args.Mode == "" {
			return mcp.NewToolResultError("mode is required"), nil
		}
		status, err := converter.SetMode(index, args.Mode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to set mode: %v", err)), nil
		}
		return jsonResult(status), nil
	}
}

func getSetNoteHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args SetNoteRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args SetNoteRequest) (*mcp.CallToolResult, error) {
		index, invalid := requireIndex(args.Index)
		if invalid != nil {
			return invalid, nil
		}
		status, err := converter.SetNote(index, args.Text)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to set note: %v", err)), nil
		}
		return jsonResult(status), nil
	}
}

func getRedoHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args RedoRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args RedoRequest) (*mcp.CallToolResult, error) {
		index, invalid := requireIndex(args.Index)
		if invalid != nil {
			return invalid, nil
		}
		status, err := converter.Redo(index)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to reset tile: %v", err)), nil
		}
		return jsonResult(status), nil
	}
}

func getSetAdditionalTextHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args SetAdditionalTextRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args SetAdditionalTextRequest) (*mcp.CallToolResult, error) {
		status, err := converter.SetAdditionalText(args.Text)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to set additional text: %v", err)), nil
		}
		return jsonResult(status), nil
	}
}

func getStatusHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args StatusRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args StatusRequest) (*mcp.CallToolResult, error) {
		status, err := converter.Status()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get status: %v", err)), nil
		}
		return jsonResult(status), nil
	}
}

func getPreviewHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args PreviewRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args PreviewRequest) (*mcp.CallToolResult, error) {
		preview, err := converter.Preview(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to render preview: %v", err)), nil
		}
		return jsonResult(preview), nil
	}
}

func getExportHandler(converter service.Converter) func(ctx context.Context, request mcp.CallToolRequest, args ExportRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args ExportRequest) (*mcp.CallToolResult, error) {
		if args.Dir != "" && !localCaller(ctx) {
			return remoteFileError("dir"), nil
		}
		result, err := converter.Export(args.Dir)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to export: %v", err)), nil
		}
		return jsonResult(result), nil
	}
}

func getSaveSnippetHandler(saver service.Saver) func(ctx context.Context, request mcp.CallToolRequest, args SaveSnippetRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args SaveSnippetRequest) (*mcp.CallToolResult, error) {
		if args.Folder != "" && !localCaller(ctx) {
			return remoteFileError("folder"), nil
		}
		result, err := saver.Save(args.HTML, args.Folder)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save snippet: %v", err)), nil
		}
		return jsonResult(result), nil
	}
}
