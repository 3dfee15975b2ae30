package service

import (
	"errors"
	"strings"
	"time"

	"github.com/foomo/pocketguide-ada/output"
	"github.com/foomo/pocketguide-ada/scrape"
	"github.com/foomo/pocketguide-ada/service/vo"
	"go.uber.org/zap"
)

var ErrEmptyContent = errors.New("no HTML content to save")

// Saver stores raw HTML snippets under a name derived from their content.
type Saver interface {
	Save(content, folder string) (vo.SaveResult, error)
}

type saver struct {
	logger        *zap.Logger
	defaultFolder string
	notifier      Notifier
}

func NewSaver(logger *zap.Logger, defaultFolder string, notifier Notifier) Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &saver{
		logger:        logger,
		defaultFolder: defaultFolder,
		notifier:      notifier,
	}
}

// Save writes content to folder, or the default folder when empty. The file
// is named <derived name>_<page type>.html and never replaces an existing one.
func (s *saver) Save(content, folder string) (vo.SaveResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return vo.SaveResult{}, ErrEmptyContent
	}
	if folder == "" {
		folder = s.defaultFolder
	}

	pageType := scrape.Classify(content).String()
	name := scrape.DeriveName(content) + "_" + pageType

	path, err := output.Write(folder, name, content)
	if err != nil {
		s.logger.Error("failed to save snippet", zap.String("folder", folder), zap.Error(err))
		return vo.SaveResult{}, err
	}
	s.logger.Info("snippet saved", zap.String("path", path), zap.String("pageType", pageType))

	if s.notifier != nil {
		s.notifier(vo.Event{Type: vo.EventSnippetSaved, Message: name, Path: path, Timestamp: time.Now()})
	}
	return vo.SaveResult{Path: path, Name: name, PageType: pageType}, nil
}
