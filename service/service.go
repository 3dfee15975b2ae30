package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/foomo/pocketguide-ada/compose"
	"github.com/foomo/pocketguide-ada/guide"
	"github.com/foomo/pocketguide-ada/imagecache"
	"github.com/foomo/pocketguide-ada/output"
	"github.com/foomo/pocketguide-ada/scrape"
	"github.com/foomo/pocketguide-ada/service/vo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoPage        = errors.New("no page loaded")
	ErrTileIndex     = errors.New("tile index out of range")
	ErrNotExpandable = errors.New("tile does not reference a pocket guide page")
	ErrPageReplaced  = errors.New("page was replaced while the sub-page was parsed")
)

// NotReadyError rejects an export while expandable tiles are unresolved.
type NotReadyError struct {
	Tiles []string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("export blocked, unresolved tiles: %s", strings.Join(e.Tiles, ", "))
}

// Notifier receives an event after every successful change.
type Notifier func(vo.Event)

type Converter interface {
	LoadPage(html string) (vo.PageStatus, error)
	LoadPageFile(path string) (vo.PageStatus, error)
	UploadSubpage(index int, html string) (vo.TileStatus, error)
	UploadSubpageFile(index int, path string) (vo.TileStatus, error)
	UploadSubpages(ctx context.Context, pages map[int]string) (vo.PageStatus, error)
	SetMode(index int, mode string) (vo.TileStatus, error)
	SetNote(index int, text string) (vo.TileStatus, error)
	Redo(index int) (vo.TileStatus, error)
	SetAdditionalText(text string) (vo.PageStatus, error)
	Status() (vo.PageStatus, error)
	Ready() bool
	Export(dir string) (vo.ExportResult, error)
	Preview(ctx context.Context) (*vo.Preview, error)
}

type ConverterSettings struct {
	OutputDir          string
	SubpageConcurrency int
	ImageCache         *imagecache.Cache
	Notifier           Notifier
}

// converter owns the main page. All model mutations happen under mu;
// parsing runs outside of it.
type converter struct {
	logger   *zap.Logger
	settings ConverterSettings

	mu             sync.Mutex
	page           *guide.Page
	generation     int
	additionalText string

	parseSubpage func(html string) (guide.Subpage, error)
}

func NewConverter(logger *zap.Logger, settings ConverterSettings) Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.SubpageConcurrency <= 0 {
		settings.SubpageConcurrency = 4
	}
	return &converter{
		logger:       logger,
		settings:     settings,
		parseSubpage: scrape.ParseSubpage,
	}
}

func (c *converter) LoadPage(html string) (vo.PageStatus, error) {
	page, err := scrape.Parse(html)
	if err != nil {
		c.logger.Warn("failed to parse page", zap.Error(err))
		return vo.PageStatus{}, err
	}
	return c.install(page), nil
}

func (c *converter) LoadPageFile(path string) (vo.PageStatus, error) {
	page, err := scrape.ParseFile(path)
	if err != nil {
		c.logger.Warn("failed to parse page", zap.String("path", path), zap.Error(err))
		return vo.PageStatus{}, err
	}
	return c.install(page), nil
}

func (c *converter) install(page *guide.Page) vo.PageStatus {
	c.mu.Lock()
	c.page = page
	c.generation++
	status := c.status()
	c.mu.Unlock()

	c.logger.Info("page loaded",
		zap.String("title", page.Title),
		zap.Int("tiles", len(page.Tiles)),
		zap.Bool("listPage", page.IsListPage()),
	)
	c.notify(vo.Event{Type: vo.EventPageLoaded, Message: page.Title, Ready: status.Ready})
	return status
}

func (c *converter) UploadSubpage(index int, html string) (vo.TileStatus, error) {
	return c.uploadSubpage(index, func() (guide.Subpage, error) {
		return c.parseSubpage(html)
	})
}

func (c *converter) UploadSubpageFile(index int, path string) (vo.TileStatus, error) {
	return c.uploadSubpage(index, func() (guide.Subpage, error) {
		page, err := scrape.ParseFile(path)
		if err != nil {
			return guide.Subpage{}, err
		}
		return page.Subpage(), nil
	})
}

func (c *converter) uploadSubpage(index int, parse func() (guide.Subpage, error)) (vo.TileStatus, error) {
	c.mu.Lock()
	_, err := c.expandableTile(index)
	generation := c.generation
	c.mu.Unlock()
	if err != nil {
		return vo.TileStatus{}, err
	}

	sub, err := parse()
	if err != nil {
		c.logger.Warn("failed to parse sub-page", zap.Int("tile", index), zap.Error(err))
		return vo.TileStatus{}, err
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return vo.TileStatus{}, ErrPageReplaced
	}
	tile := c.page.Tiles[index]
	tile.AttachSubpage(sub)
	status := tileStatus(index, tile)
	ready := c.page.AllResolved()
	c.mu.Unlock()

	c.logger.Info("sub-page attached",
		zap.Int("tile", index),
		zap.String("text", tile.Text),
		zap.Int("subTiles", len(sub.Tiles)),
		zap.Bool("list", sub.IsList),
	)
	c.notify(vo.Event{Type: vo.EventTileResolved, TileIndex: &index, Message: status.Text, Ready: ready})
	return status, nil
}

// UploadSubpages parses several sub-pages concurrently and attaches every
// one that parsed. Failures are returned joined; their tiles stay as they were.
func (c *converter) UploadSubpages(ctx context.Context, pages map[int]string) (vo.PageStatus, error) {
	c.mu.Lock()
	if c.page == nil {
		c.mu.Unlock()
		return vo.PageStatus{}, ErrNoPage
	}
	generation := c.generation
	indexes := make([]int, 0, len(pages))
	var errs []error
	for index := range pages {
		if _, err := c.expandableTile(index); err != nil {
			errs = append(errs, fmt.Errorf("tile %d: %w", index, err))
			continue
		}
		indexes = append(indexes, index)
	}
	c.mu.Unlock()
	sort.Ints(indexes)

	subs := make([]guide.Subpage, len(indexes))
	parseErrs := make([]error, len(indexes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.settings.SubpageConcurrency)
	for i, index := range indexes {
		i, index := i, index
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			subs[i], parseErrs[i] = c.parseSubpage(pages[index])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return vo.PageStatus{}, err
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return vo.PageStatus{}, ErrPageReplaced
	}
	var attached []int
	for i, index := range indexes {
		if parseErrs[i] != nil {
			errs = append(errs, fmt.Errorf("tile %d: %w", index, parseErrs[i]))
			continue
		}
		c.page.Tiles[index].AttachSubpage(subs[i])
		attached = append(attached, index)
	}
	status := c.status()
	c.mu.Unlock()

	for _, index := range attached {
		index := index
		c.notify(vo.Event{Type: vo.EventTileResolved, TileIndex: &index, Message: status.Tiles[index].Text, Ready: status.Ready})
	}
	err := errors.Join(errs...)
	if err != nil {
		c.logger.Warn("some sub-pages were not attached", zap.Error(err))
	}
	c.logger.Info("sub-pages attached", zap.Ints("tiles", attached))
	return status, err
}

func (c *converter) SetMode(index int, mode string) (vo.TileStatus, error) {
	m, err := guide.ParseMode(mode)
	if err != nil {
		return vo.TileStatus{}, err
	}
	return c.mutate(index, vo.EventTileUpdated, func(t *guide.Tile) error {
		return t.SetMode(m)
	})
}

func (c *converter) SetNote(index int, text string) (vo.TileStatus, error) {
	return c.mutate(index, vo.EventTileUpdated, func(t *guide.Tile) error {
		t.SetNote(text)
		return nil
	})
}

func (c *converter) Redo(index int) (vo.TileStatus, error) {
	return c.mutate(index, vo.EventTileReset, func(t *guide.Tile) error {
		t.Redo()
		return nil
	})
}

func (c *converter) mutate(index int, eventType vo.EventType, fn func(*guide.Tile) error) (vo.TileStatus, error) {
	c.mu.Lock()
	tile, err := c.expandableTile(index)
	if err == nil {
		err = fn(tile)
	}
	if err != nil {
		c.mu.Unlock()
		return vo.TileStatus{}, err
	}
	status := tileStatus(index, tile)
	ready := c.page.AllResolved()
	c.mu.Unlock()

	c.logger.Debug("tile updated", zap.Int("tile", index), zap.String("state", status.State), zap.String("mode", status.Mode))
	c.notify(vo.Event{Type: eventType, TileIndex: &index, Message: status.Text, Ready: ready})
	return status, nil
}

func (c *converter) SetAdditionalText(text string) (vo.PageStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.additionalText = text
	if c.page == nil {
		return vo.PageStatus{AdditionalText: text}, nil
	}
	return c.status(), nil
}

func (c *converter) Status() (vo.PageStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page == nil {
		return vo.PageStatus{}, ErrNoPage
	}
	return c.status(), nil
}

// Ready reports whether a page is loaded and can be exported.
func (c *converter) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page != nil && c.page.AllResolved()
}

// Export writes the composed page to dir, or the configured output
// directory. Nothing is written while expandable tiles are unresolved.
func (c *converter) Export(dir string) (vo.ExportResult, error) {
	if dir == "" {
		dir = c.settings.OutputDir
	}

	c.mu.Lock()
	if c.page == nil {
		c.mu.Unlock()
		return vo.ExportResult{}, ErrNoPage
	}
	if unresolved := c.page.Unresolved(); len(unresolved) > 0 {
		notReady := &NotReadyError{}
		for _, i := range unresolved {
			notReady.Tiles = append(notReady.Tiles, c.page.Tiles[i].Text)
		}
		c.mu.Unlock()
		return vo.ExportResult{}, notReady
	}
	title := c.page.Title
	doc, err := compose.Compose(c.page, compose.Options{AdditionalText: c.additionalText})
	c.mu.Unlock()
	if err != nil {
		return vo.ExportResult{}, err
	}

	path, err := output.Write(dir, compose.OutputBase(title), doc)
	if err != nil {
		c.logger.Error("failed to export page", zap.String("dir", dir), zap.Error(err))
		return vo.ExportResult{}, err
	}
	c.logger.Info("page exported", zap.String("path", path))
	c.notify(vo.Event{Type: vo.EventExported, Message: title, Path: path, Ready: true})
	return vo.ExportResult{Path: path, Title: title}, nil
}

func (c *converter) notify(event vo.Event) {
	if c.settings.Notifier == nil {
		return
	}
	event.Timestamp = time.Now()
	c.settings.Notifier(event)
}

// expandableTile must be called with mu held.
func (c *converter) expandableTile(index int) (*guide.Tile, error) {
	if c.page == nil {
		return nil, ErrNoPage
	}
	if index < 0 || index >= len(c.page.Tiles) {
		return nil, fmt.Errorf("%w: %d", ErrTileIndex, index)
	}
	tile := c.page.Tiles[index]
	if !tile.Expandable() {
		return nil, fmt.Errorf("%w: %q", ErrNotExpandable, tile.Text)
	}
	return tile, nil
}

// status must be called with mu held.
func (c *converter) status() vo.PageStatus {
	status := vo.PageStatus{
		Title:          c.page.Title,
		HeroImage:      c.page.HeroImage,
		IsListPage:     c.page.IsListPage(),
		AdditionalText: c.additionalText,
		Unresolved:     c.page.Unresolved(),
		Tiles:          make([]vo.TileStatus, len(c.page.Tiles)),
	}
	if status.Unresolved == nil {
		status.Unresolved = []int{}
	}
	status.Ready = len(status.Unresolved) == 0
	for i, t := range c.page.Tiles {
		status.Tiles[i] = tileStatus(i, t)
	}
	return status
}

func tileStatus(index int, t *guide.Tile) vo.TileStatus {
	status := vo.TileStatus{
		Index:      index,
		Text:       t.Text,
		Icon:       t.Icon,
		Href:       t.Href,
		Expandable: t.Expandable(),
		State:      t.State().String(),
		Mode:       string(t.Mode()),
		SubIsList:  t.SubIsList(),
		SubAddText: t.SubAddText(),
	}
	for _, sub := range t.SubTiles() {
		status.SubTiles = append(status.SubTiles, vo.SubTile{Text: sub.Text, Icon: sub.Icon, Href: sub.Href})
	}
	return status
}
