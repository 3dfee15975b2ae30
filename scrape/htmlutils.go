package scrape

import (
	"strings"

	"golang.org/x/net/html"
)

// hasClasses reports whether n carries every given class token.
func hasClasses(n *html.Node, classes ...string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	tokens := strings.Fields(attr(n, "class"))
	for _, class := range classes {
		found := false
		for _, token := range tokens {
			if token == class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// attr returns the value of the named attribute, or "" when it is missing.
func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// findAll returns every descendant element matching tag and classes in
// document order. An empty tag matches any element.
func findAll(n *html.Node, tag string, classes ...string) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && (tag == "" || c.Data == tag) && hasClasses(c, classes...) {
			nodes = append(nodes, c)
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return nodes
}

// findFirst returns the first descendant element matching tag and classes.
func findFirst(n *html.Node, tag string, classes ...string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (tag == "" || c.Data == tag) && hasClasses(c, classes...) {
			return c
		}
		if result := findFirst(c, tag, classes...); result != nil {
			return result
		}
	}
	return nil
}

// textContent concatenates all text below n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

// trimmedText is textContent with surrounding whitespace removed; nil yields "".
func trimmedText(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(textContent(n))
}
