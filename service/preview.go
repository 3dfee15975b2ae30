package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/foomo/pocketguide-ada/compose"
	"github.com/foomo/pocketguide-ada/service/vo"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Preview renders the current page as markdown. With an image cache
// configured, hero and icon images are downloaded and mapped to local files.
// Unresolved tiles render as plain links.
func (c *converter) Preview(ctx context.Context) (*vo.Preview, error) {
	c.mu.Lock()
	if c.page == nil {
		c.mu.Unlock()
		return nil, ErrNoPage
	}
	doc, err := compose.Compose(c.page, compose.Options{AdditionalText: c.additionalText})
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	content := findElement(root, "main")
	if content == nil {
		return nil, fmt.Errorf("composed page has no main element")
	}

	markdownBytes, err := htmltomarkdown.ConvertNode(content)
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	preview := &vo.Preview{Markdown: vo.Markdown(markdownBytes)}
	if c.settings.ImageCache != nil {
		preview.Images = c.fetchImages(ctx, imageSources(content))
	}
	return preview, nil
}

// fetchImages downloads what it can. Failures are logged and skipped.
func (c *converter) fetchImages(ctx context.Context, urls []string) map[string]string {
	var (
		mu     sync.Mutex
		images = make(map[string]string, len(urls))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.settings.SubpageConcurrency)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			local, err := c.settings.ImageCache.Fetch(gctx, u)
			if err != nil {
				c.logger.Debug("preview image skipped", zap.String("url", u), zap.Error(err))
				return nil
			}
			mu.Lock()
			images[u] = local
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return images
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func imageSources(n *html.Node) []string {
	seen := map[string]bool{}
	var urls []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			for _, a := range n.Attr {
				if a.Key == "src" && a.Val != "" && !seen[a.Val] {
					seen[a.Val] = true
					urls = append(urls, a.Val)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return urls
}
