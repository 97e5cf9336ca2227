// Package fetcher turns a web page into text suitable for a journal entry.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// maxBody caps how much of a response is read
const maxBody = 5 * 1024 * 1024

// maxText caps the extracted text; entry bodies are meant to be read, not archived
const maxText = 4 * 1024

// Page is the readable part of a web page
type Page struct {
	URL   string
	Title string
	Text  string
}

// Client fetches pages
type Client struct {
	http *http.Client
}

// New returns a Client with a 30s timeout
func New() *Client {
	return &Client{http: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch retrieves rawURL and extracts its title and readable paragraphs
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + strings.TrimSpace(rawURL))
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "jot/1.0 (journal)")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", u, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	page, err := extract(string(body))
	if err != nil {
		return nil, err
	}
	page.URL = u.String()
	if page.Text == "" {
		return nil, fmt.Errorf("no text content found")
	}
	return page, nil
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true, "title": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// extract walks the HTML tree. Paragraphs become lines; lines are joined with
// single newlines because a blank line would end the entry body.
func extract(doc string) (*Page, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{}
	var lines []string
	var cur strings.Builder

	endLine := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && page.Title == "" && n.FirstChild != nil {
			page.Title = strings.TrimSpace(n.FirstChild.Data)
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			cur.WriteString(n.Data)
			cur.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			endLine()
		}
	}
	walk(root)
	endLine()

	text := strings.Join(lines, "\n")
	if len(text) > maxText {
		cut := strings.LastIndexByte(text[:maxText], '\n')
		if cut <= 0 {
			cut = maxText
		}
		text = text[:cut] + "..."
	}
	page.Text = text
	return page, nil
}
