package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/foomo/pocketguide-ada/service"
	"github.com/foomo/pocketguide-ada/service/vo"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

const mainPage = `<html><body>
<div class="sectiontext">Student Resources</div>
<div class="child w3-card tile"><a href="campusm://pocketguide?pg_code=ADV"><div class="tiletext">Advising</div></a></div>
<div class="child w3-card tile"><a href="https://library.example.edu"><div class="tiletext">Library</div></a></div>
</body></html>`

const advisingPage = `<html><body>
<div class="sectiontext">Advising</div>
<div class="child w3-card tile"><a href="https://advising.example.edu/book"><div class="tiletext">Book an Appointment</div></a></div>
</body></html>`

func intPtr(i int) *int { return &i }

func newConverter(t *testing.T) service.Converter {
	t.Helper()
	return service.NewConverter(zap.NewNop(), service.ConverterSettings{OutputDir: t.TempDir()})
}

func request(name string, args any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Request: mcp.Request{
			Method: "tools/call",
		},
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("handler returned nil result")
	}
	if len(result.Content) == 0 {
		t.Fatal("handler returned no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := NewServer(newConverter(t), service.NewSaver(zap.NewNop(), t.TempDir(), nil))
	if s == nil {
		t.Fatal("NewServer() returned nil")
	}
	if s := NewServer(newConverter(t), nil); s == nil {
		t.Fatal("NewServer() without saver returned nil")
	}
}

func TestWorkflowHandlers(t *testing.T) {
	ctx := context.Background()
	converter := newConverter(t)

	args := LoadPageRequest{HTML: mainPage}
	result, err := getLoadPageHandler(converter)(ctx, request("load_page", args), args)
	if err != nil {
		t.Fatalf("load_page returned error: %v", err)
	}
	var status vo.PageStatus
	if err := json.Unmarshal([]byte(resultText(t, result)), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Title != "Student Resources" || status.Ready {
		t.Fatalf("unexpected status after load: %+v", status)
	}

	exportArgs := ExportRequest{}
	result, _ = getExportHandler(converter)(ctx, request("export", exportArgs), exportArgs)
	if !result.IsError {
		t.Fatal("expected export to be rejected while tile 0 is unresolved")
	}
	if text := resultText(t, result); !strings.Contains(text, "Advising") {
		t.Fatalf("expected the unresolved tile to be named, got %q", text)
	}

	uploadArgs := UploadSubpageRequest{Index: intPtr(0), HTML: advisingPage}
	result, _ = getUploadSubpageHandler(converter)(ctx, request("upload_subpage", uploadArgs), uploadArgs)
	if result.IsError {
		t.Fatalf("upload_subpage failed: %s", resultText(t, result))
	}
	var tile vo.TileStatus
	if err := json.Unmarshal([]byte(resultText(t, result)), &tile); err != nil {
		t.Fatalf("failed to decode tile: %v", err)
	}
	if tile.State != "resolved" || len(tile.SubTiles) != 1 {
		t.Fatalf("unexpected tile after upload: %+v", tile)
	}

	previewArgs := PreviewRequest{}
	result, _ = getPreviewHandler(converter)(ctx, request("preview", previewArgs), previewArgs)
	if result.IsError || !strings.Contains(resultText(t, result), "Book an Appointment") {
		t.Fatalf("unexpected preview: %s", resultText(t, result))
	}

	result, _ = getExportHandler(converter)(ctx, request("export", exportArgs), exportArgs)
	if result.IsError {
		t.Fatalf("export failed: %s", resultText(t, result))
	}
	var exported vo.ExportResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &exported); err != nil {
		t.Fatalf("failed to decode export: %v", err)
	}
	if filepath.Base(exported.Path) != "ADA_Student_Resources.html" {
		t.Fatalf("unexpected export path %q", exported.Path)
	}
	if _, err := os.Stat(exported.Path); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
}

func TestTileHandlers(t *testing.T) {
	ctx := context.Background()
	converter := newConverter(t)
	if _, err := converter.LoadPage(mainPage); err != nil {
		t.Fatalf("failed to load page: %v", err)
	}

	modeArgs := SetModeRequest{Index: intPtr(0), Mode: "text_only"}
	result, _ := getSetModeHandler(converter)(ctx, request("set_mode", modeArgs), modeArgs)
	if result.IsError {
		t.Fatalf("set_mode failed: %s", resultText(t, result))
	}

	noteArgs := SetNoteRequest{Index: intPtr(0), Text: "Call 555-0100"}
	result, _ = getSetNoteHandler(converter)(ctx, request("set_note", noteArgs), noteArgs)
	if !strings.Contains(resultText(t, result), "Call 555-0100") {
		t.Fatalf("note missing from %s", resultText(t, result))
	}

	redoArgs := RedoRequest{Index: intPtr(0)}
	result, _ = getRedoHandler(converter)(ctx, request("redo", redoArgs), redoArgs)
	var tile vo.TileStatus
	if err := json.Unmarshal([]byte(resultText(t, result)), &tile); err != nil {
		t.Fatalf("failed to decode tile: %v", err)
	}
	if tile.State != "unresolved" || tile.SubAddText != "" {
		t.Fatalf("unexpected tile after redo: %+v", tile)
	}

	textArgs := SetAdditionalTextRequest{Text: "Welcome"}
	result, _ = getSetAdditionalTextHandler(converter)(ctx, request("set_additional_text", textArgs), textArgs)
	if result.IsError {
		t.Fatalf("set_additional_text failed: %s", resultText(t, result))
	}

	statusArgs := StatusRequest{}
	result, _ = getStatusHandler(converter)(ctx, request("status", statusArgs), statusArgs)
	if !strings.Contains(resultText(t, result), `"additionalText":"Welcome"`) {
		t.Fatalf("unexpected status %s", resultText(t, result))
	}

	batchArgs := UploadSubpagesRequest{Pages: []SubpageUpload{{Index: 0, HTML: advisingPage}, {Index: 1, HTML: advisingPage}}}
	result, _ = getUploadSubpagesHandler(converter)(ctx, request("upload_subpages", batchArgs), batchArgs)
	if result.IsError {
		t.Fatalf("upload_subpages failed: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), `"errors"`) {
		t.Fatalf("expected the non-expandable tile to be reported, got %s", resultText(t, result))
	}
}

func TestHandlerValidation(t *testing.T) {
	ctx := context.Background()
	converter := newConverter(t)

	tests := []struct {
		name string
		call func() (*mcp.CallToolResult, error)
	}{
		{"load_page without input", func() (*mcp.CallToolResult, error) {
			args := LoadPageRequest{}
			return getLoadPageHandler(converter)(ctx, request("load_page", args), args)
		}},
		{"load_page with both inputs", func() (*mcp.CallToolResult, error) {
			args := LoadPageRequest{HTML: mainPage, Path: "main.html"}
			return getLoadPageHandler(converter)(ctx, request("load_page", args), args)
		}},
		{"status before load", func() (*mcp.CallToolResult, error) {
			args := StatusRequest{}
			return getStatusHandler(converter)(ctx, request("status", args), args)
		}},
		{"set_mode without index", func() (*mcp.CallToolResult, error) {
			args := SetModeRequest{Mode: "direct"}
			return getSetModeHandler(converter)(ctx, request("set_mode", args), args)
		}},
		{"set_mode without mode", func() (*mcp.CallToolResult, error) {
			args := SetModeRequest{Index: intPtr(0)}
			return getSetModeHandler(converter)(ctx, request("set_mode", args), args)
		}},
		{"redo without index", func() (*mcp.CallToolResult, error) {
			args := RedoRequest{}
			return getRedoHandler(converter)(ctx, request("redo", args), args)
		}},
		{"upload_subpages without pages", func() (*mcp.CallToolResult, error) {
			args := UploadSubpagesRequest{}
			return getUploadSubpagesHandler(converter)(ctx, request("upload_subpages", args), args)
		}},
		{"upload_subpages with duplicates", func() (*mcp.CallToolResult, error) {
			args := UploadSubpagesRequest{Pages: []SubpageUpload{{Index: 0, HTML: "a"}, {Index: 0, HTML: "b"}}}
			return getUploadSubpagesHandler(converter)(ctx, request("upload_subpages", args), args)
		}},
		{"save_snippet without html", func() (*mcp.CallToolResult, error) {
			args := SaveSnippetRequest{}
			saver := service.NewSaver(zap.NewNop(), t.TempDir(), nil)
			return getSaveSnippetHandler(saver)(ctx, request("save_snippet", args), args)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.call()
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if result == nil || !result.IsError {
				t.Fatal("expected error result")
			}
		})
	}
}

func TestSaveSnippetHandler(t *testing.T) {
	dir := t.TempDir()
	saver := service.NewSaver(zap.NewNop(), dir, nil)

	args := SaveSnippetRequest{HTML: `<div class="sectiontext">Parking</div>`}
	result, err := getSaveSnippetHandler(saver)(context.Background(), request("save_snippet", args), args)
	if err != nil {
		t.Fatalf("save_snippet returned error: %v", err)
	}
	var saved vo.SaveResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &saved); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if saved.Path != filepath.Join(dir, "Parking_text.html") {
		t.Fatalf("unexpected path %q", saved.Path)
	}
}
