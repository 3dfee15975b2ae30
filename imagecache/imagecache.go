// Package imagecache downloads hero and icon images for previews and
// remembers where they were stored for the lifetime of the process.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// maxImageSize caps a single download.
const maxImageSize = 10 << 20

// FetchError reports an image that could not be downloaded. It is never
// fatal to the conversion workflow.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch image %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Cache maps image URLs to local files. Entries are never evicted.
type Cache struct {
	dir        string
	ownsDir    bool
	httpClient *http.Client

	group singleflight.Group
	mu    sync.RWMutex
	paths map[string]string
}

// New creates a cache storing files in dir. An empty dir creates a temporary
// directory that Close removes.
func New(dir string, httpClient *http.Client) (*Cache, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	owns := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "pocketguide-images-")
		if err != nil {
			return nil, fmt.Errorf("failed to create image cache directory: %w", err)
		}
		dir, owns = tmp, true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image cache directory: %w", err)
	}
	return &Cache{
		dir:        dir,
		ownsDir:    owns,
		httpClient: httpClient,
		paths:      make(map[string]string),
	}, nil
}

// Dir returns the directory holding downloaded files.
func (c *Cache) Dir() string { return c.dir }

// Fetch returns the local path of the image at rawURL, downloading it once.
// Concurrent calls for the same URL share one download. A caller whose ctx
// ends stops waiting, but the download carries on for the others and is
// bounded by the http client timeout.
func (c *Cache) Fetch(ctx context.Context, rawURL string) (string, error) {
	c.mu.RLock()
	p, ok := c.paths[rawURL]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	ch := c.group.DoChan(rawURL, func() (interface{}, error) {
		p, err := c.download(context.WithoutCancel(ctx), rawURL)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.paths[rawURL] = p
		c.mu.Unlock()
		return p, nil
	})
	select {
	case <-ctx.Done():
		return "", &FetchError{URL: rawURL, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", &FetchError{URL: rawURL, Err: res.Err}
		}
		return res.Val.(string), nil
	}
}

func (c *Cache) download(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	sum := sha256.Sum256([]byte(rawURL))
	local := filepath.Join(c.dir, hex.EncodeToString(sum[:8])+path.Ext(u.Path))
	if err := os.WriteFile(local, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return local, nil
}

// Close removes the cache directory when the cache created it.
func (c *Cache) Close() error {
	if !c.ownsDir {
		return nil
	}
	return os.RemoveAll(c.dir)
}
