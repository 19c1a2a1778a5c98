package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/kalorin/webseek/internal/model"
)

const maxPageBytes = 4 << 20

// errIndicators flags pages whose extracted text is an error screen rather
// than content worth chunking.
var errIndicators = []string{
	"404 not found",
	"page not found",
	"access denied",
	"forbidden",
}

// Scraper fetches pages with bounded concurrency and reduces them to plain
// text. One URL failing never fails the batch; it is logged and dropped.
type Scraper struct {
	client           *http.Client
	maxConcurrent    int
	minContentLength int
}

func New(maxConcurrent int, minContentLength int, timeout time.Duration) *Scraper {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &Scraper{
		client:           &http.Client{Timeout: timeout},
		maxConcurrent:    maxConcurrent,
		minContentLength: minContentLength,
	}
}

// ScrapePages fetches all urls and returns the valid pages in input order.
func (s *Scraper) ScrapePages(ctx context.Context, urls []string) []*model.Page {
	logger := logutil.GetLogger(ctx)
	if len(urls) == 0 {
		logger.Warn("no urls to scrape")
		return nil
	}

	pages := make([]*model.Page, len(urls))
	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.maxConcurrent)
	for i, u := range urls {
		eg.Go(func() error {
			page, err := s.fetch(ctx, u)
			if err != nil {
				logger.Warn("scrape failed, dropping url", zap.String("url", u), zap.Error(err))
				return nil
			}
			mu.Lock()
			pages[i] = page
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	valid := make([]*model.Page, 0, len(pages))
	for _, page := range pages {
		if page == nil {
			continue
		}
		if reason := s.rejectReason(page); reason != "" {
			logger.Debug("dropping scraped page", zap.String("url", page.Source), zap.String("reason", reason))
			continue
		}
		valid = append(valid, page)
	}
	logger.Info("scraped pages", zap.Int("requested", len(urls)), zap.Int("valid", len(valid)))
	return valid
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; webseek/1.0)")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	text, err := ExtractText(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	return &model.Page{Source: pageURL, Content: text}, nil
}

func (s *Scraper) rejectReason(page *model.Page) string {
	content := strings.TrimSpace(page.Content)
	if len(content) < s.minContentLength {
		return fmt.Sprintf("content too short (%d chars)", len(content))
	}
	lower := strings.ToLower(content)
	for _, indicator := range errIndicators {
		if strings.Contains(lower, indicator) {
			return "error page"
		}
	}
	return ""
}

// ExtractText reduces an HTML document to whitespace-normalized text.
// Script, style and non-content elements are skipped; block elements break
// paragraphs.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head", "iframe", "svg":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlockElement(n.Data) {
			sb.WriteString("\n")
		}
	}
	walk(doc)
	return normalizeText(sb.String()), nil
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "li", "br", "tr",
		"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre":
		return true
	}
	return false
}

// normalizeText collapses runs of spaces and blank lines so chunk sizes
// reflect content, not markup noise.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
