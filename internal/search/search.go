package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/kalorin/webseek/internal/pkg/errors"
)

// ISearcher resolves a query scoped to one domain into a ranked URL list.
type ISearcher interface {
	Name() string
	Search(ctx context.Context, query string, domain string, maxResults int) ([]string, error)
}

// siteQuery shapes the provider query so results stay inside the target
// domain.
func siteQuery(query string, domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return query
	}
	return fmt.Sprintf("%s site:%s", query, domain)
}

// Chain tries providers in order and returns the first non-empty URL list.
// A provider error or empty result falls through to the next provider; only
// when every provider comes up empty does the chain report no results.
type Chain struct {
	providers []ISearcher
}

func NewChain(providers ...ISearcher) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) Search(ctx context.Context, query string, domain string, maxResults int) ([]string, error) {
	logger := logutil.GetLogger(ctx)
	for _, p := range c.providers {
		urls, err := p.Search(ctx, query, domain, maxResults)
		if err != nil {
			logger.Warn("search provider failed, trying next",
				zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if len(urls) == 0 {
			logger.Info("search provider returned no results, trying next",
				zap.String("provider", p.Name()))
			continue
		}
		logger.Info("search provider returned results",
			zap.String("provider", p.Name()), zap.Int("count", len(urls)))
		return urls, nil
	}
	return nil, fmt.Errorf("%w: all providers exhausted for query", appErr.ErrNoSearchResults)
}

func truncateURLs(urls []string, maxResults int) []string {
	if maxResults > 0 && len(urls) > maxResults {
		return urls[:maxResults]
	}
	return urls
}
