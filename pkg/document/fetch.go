package document

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"resume-tailor/pkg/errs"
)

// Fetcher resolves a job-description URL into plain text by scraping the
// page's main content.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}, logger: logger}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.Network("build fetch request", err)
	}
	req.Header.Set("User-Agent", "resume-tailor/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errs.Network("fetch job description", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", errs.Network("fetch job description: non-2xx status "+resp.Status, nil)
	}

	// Cap the body read; job postings are small.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", errs.Network("read job description body", err)
	}

	text := extractMainContent(body)
	if strings.TrimSpace(text) == "" {
		return "", errs.NoContent("no readable content extracted from " + url)
	}
	f.logger.Info("fetched job description", "url", url, "chars", len(text))
	return text, nil
}

// extractMainContent pulls text from content-bearing elements, skipping
// navigation, script, and style subtrees.
func extractMainContent(body []byte) string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "header", "footer", "aside":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t + "\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String()
}
