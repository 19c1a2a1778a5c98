package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/kalorin/webseek/internal/cache"
)

// cachedSearcher memoizes URL lists keyed by (query, domain, max_results).
// Cache trouble never fails the search; it just falls through to the
// wrapped provider.
type cachedSearcher struct {
	next  ISearcher
	store cache.KVStore
	ttl   time.Duration
}

func WrapCacheToSearcher(next ISearcher, store cache.KVStore, ttl time.Duration) ISearcher {
	if next == nil || store == nil || ttl <= 0 {
		return next
	}
	return &cachedSearcher{next: next, store: store, ttl: ttl}
}

func (c *cachedSearcher) Name() string {
	return c.next.Name()
}

func (c *cachedSearcher) Search(ctx context.Context, query string, domain string, maxResults int) ([]string, error) {
	logger := logutil.GetLogger(ctx)
	key := cache.SearchFingerprint(query, domain, maxResults)

	payload, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warn("search cache get failed", zap.Error(err))
	} else if ok {
		var urls []string
		if err := json.Unmarshal(payload, &urls); err == nil {
			logger.Debug("search cache hit", zap.Int("count", len(urls)))
			return urls, nil
		}
		logger.Warn("search cache payload corrupt, refetching", zap.Error(err))
	}

	urls, err := c.next.Search(ctx, query, domain, maxResults)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(urls); err == nil {
		if err := c.store.Put(ctx, key, data, c.ttl); err != nil {
			logger.Warn("search cache put failed", zap.Error(err))
		}
	}
	return urls, nil
}
