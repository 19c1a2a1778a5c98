package scraper

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/kalorin/webseek/internal/cache"
	"github.com/kalorin/webseek/internal/model"
)

// CachedScraper checks the content tier per URL before fetching. Only
// cache misses go out on the network; pages rejected by the validity
// filters are never cached.
type CachedScraper struct {
	next  *Scraper
	store cache.KVStore
	ttl   time.Duration
}

func WrapCacheToScraper(next *Scraper, store cache.KVStore, ttl time.Duration) *CachedScraper {
	return &CachedScraper{next: next, store: store, ttl: ttl}
}

func (c *CachedScraper) ScrapePages(ctx context.Context, urls []string) []*model.Page {
	if c.store == nil || c.ttl <= 0 {
		return c.next.ScrapePages(ctx, urls)
	}
	logger := logutil.GetLogger(ctx)

	cached := make(map[string]*model.Page, len(urls))
	var missURLs []string
	for _, u := range urls {
		payload, ok, err := c.store.Get(ctx, cache.ContentFingerprint(u))
		if err != nil {
			logger.Warn("content cache get failed", zap.String("url", u), zap.Error(err))
		} else if ok {
			cached[u] = &model.Page{Source: u, Content: string(payload)}
			continue
		}
		missURLs = append(missURLs, u)
	}
	if len(cached) > 0 {
		logger.Debug("content cache hits", zap.Int("count", len(cached)))
	}

	fetched := c.next.ScrapePages(ctx, missURLs)
	for _, page := range fetched {
		if err := c.store.Put(ctx, cache.ContentFingerprint(page.Source), []byte(page.Content), c.ttl); err != nil {
			logger.Warn("content cache put failed", zap.String("url", page.Source), zap.Error(err))
		}
	}

	byURL := make(map[string]*model.Page, len(fetched))
	for _, page := range fetched {
		byURL[page.Source] = page
	}
	pages := make([]*model.Page, 0, len(urls))
	for _, u := range urls {
		if page, ok := cached[u]; ok {
			pages = append(pages, page)
			continue
		}
		if page, ok := byURL[u]; ok {
			pages = append(pages, page)
		}
	}
	return pages
}
