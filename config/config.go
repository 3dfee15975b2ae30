package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the converter settings
type Config struct {
	OutputDir  string         `yaml:"outputDir"`  // where ADA pages are exported
	SnippetDir string         `yaml:"snippetDir"` // default folder of the snippet saver
	InboxDir   string         `yaml:"inboxDir"`   // watched for dropped snippets, disabled when empty
	Server     ServerConfig   `yaml:"server"`
	Log        LogConfig      `yaml:"log"`
	Images     ImagesConfig   `yaml:"images"`
	Subpages   SubpagesConfig `yaml:"subpages"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"` // stdio mode when empty
	Endpoint string `yaml:"endpoint"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}

// ImagesConfig controls downloading of preview images
type ImagesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"` // temporary directory when empty
}

type SubpagesConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		OutputDir:  "~/Downloads",
		SnippetDir: "~/Desktop/htmlscripts/scripts",
		Server: ServerConfig{
			Endpoint: "/mcp",
		},
		Log: LogConfig{
			Level: "info",
		},
		Images: ImagesConfig{
			Enabled: true,
		},
		Subpages: SubpagesConfig{
			Concurrency: 4,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path or a missing file
// yields the defaults. Directories starting with ~ are expanded.
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}
	if err := config.expand(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if c.Subpages.Concurrency < 1 {
		return fmt.Errorf("subpages.concurrency must be at least 1, got %d", c.Subpages.Concurrency)
	}
	if !strings.HasPrefix(c.Server.Endpoint, "/") {
		return fmt.Errorf("server.endpoint must start with /, got %q", c.Server.Endpoint)
	}
	// saved snippets would land back in the inbox and be saved again
	if c.InboxDir != "" && filepath.Clean(c.InboxDir) == filepath.Clean(c.SnippetDir) {
		return fmt.Errorf("inboxDir must differ from snippetDir, both are %q", c.InboxDir)
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func (c *Config) expand() error {
	for _, dir := range []*string{&c.OutputDir, &c.SnippetDir, &c.InboxDir, &c.Images.Dir} {
		expanded, err := ExpandHome(*dir)
		if err != nil {
			return err
		}
		*dir = expanded
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
