package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foomo/pocketguide-ada/config"
	"github.com/foomo/pocketguide-ada/imagecache"
	"github.com/foomo/pocketguide-ada/mcp"
	"github.com/foomo/pocketguide-ada/service"
	"github.com/foomo/pocketguide-ada/service/vo"
	"github.com/foomo/pocketguide-ada/watch"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	httpAddr := flag.String("http", "", "HTTP server address (e.g., ':8080'), overrides the config")
	inboxDir := flag.String("inbox", "", "Directory watched for HTML snippets to save")
	outputDir := flag.String("out", "", "Directory ADA pages are exported to")
	snippetDir := flag.String("snippets", "", "Default folder for saved snippets")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}
	for flagValue, target := range map[*string]*string{
		inboxDir:   &cfg.InboxDir,
		outputDir:  &cfg.OutputDir,
		snippetDir: &cfg.SnippetDir,
	} {
		if *flagValue == "" {
			continue
		}
		if *target, err = config.ExpandHome(*flagValue); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, cfg); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
	zapConfig.OutputPaths = []string{"stderr"}
	return zapConfig.Build()
}

func run(logger *zap.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var images *imagecache.Cache
	if cfg.Images.Enabled {
		var err error
		if images, err = imagecache.New(cfg.Images.Dir, nil); err != nil {
			return err
		}
		defer images.Close()
		logger.Info("caching preview images", zap.String("dir", images.Dir()))
	}

	events := mcp.NewEventServer(logger.Named("sse"), nil)
	defer events.Close()
	notify := func(event vo.Event) {
		logger.Debug("event", zap.String("type", string(event.Type)), zap.String("message", event.Message))
		events.Publish(event)
	}

	converter := service.NewConverter(logger.Named("converter"), service.ConverterSettings{
		OutputDir:          cfg.OutputDir,
		SubpageConcurrency: cfg.Subpages.Concurrency,
		ImageCache:         images,
		Notifier:           notify,
	})
	saver := service.NewSaver(logger.Named("saver"), cfg.SnippetDir, notify)

	if cfg.InboxDir != "" {
		watcher, err := watch.New(cfg.InboxDir, saveInboxFile(saver), logger.Named("inbox"))
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbox watcher stopped", zap.Error(err))
			}
		}()
	}

	s := mcp.NewServer(converter, saver)

	if cfg.Server.Addr == "" {
		logger.Info("starting MCP server in stdio mode")
		return server.ServeStdio(s)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mcp.NewHTTPServer(logger.Named("http"), s, events, converter, cfg.Server.Endpoint),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		events.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down HTTP server", zap.Error(err))
		}
	}()

	logger.Info("starting MCP server", zap.String("addr", cfg.Server.Addr), zap.String("endpoint", cfg.Server.Endpoint))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func saveInboxFile(saver service.Saver) watch.Handler {
	return func(ctx context.Context, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		_, err = saver.Save(string(data), "")
		return err
	}
}
