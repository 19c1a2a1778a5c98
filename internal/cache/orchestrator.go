package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/kalorin/webseek/internal/model"
	appErr "github.com/kalorin/webseek/internal/pkg/errors"
)

// Tier names reported in hit telemetry and response metadata.
const (
	TierExact    = "exact"
	TierSemantic = "semantic"
)

type Stats struct {
	ExactHits    int64 `json:"exact_hits"`
	SemanticHits int64 `json:"semantic_hits"`
	Misses       int64 `json:"misses"`
	Failures     int64 `json:"failures"`
}

// ResponseCache composes the exact-match and semantic tiers behind one
// lookup/store API. Exact first (cheap, deterministic), semantic second
// (embedding cost, fuzzy). Every backing failure is logged and treated as a
// miss: caching is an optimization, never a correctness dependency.
type ResponseCache struct {
	exact       KVStore
	semantic    *SemanticCache
	responseTTL time.Duration

	exactHits    atomic.Int64
	semanticHits atomic.Int64
	misses       atomic.Int64
	failures     atomic.Int64
}

func NewResponseCache(exact KVStore, semantic *SemanticCache, responseTTL time.Duration) *ResponseCache {
	return &ResponseCache{
		exact:       exact,
		semantic:    semantic,
		responseTTL: responseTTL,
	}
}

// GetResponse returns the cached payload and the tier that produced it, or
// absent. qc carries the query embedding across the semantic lookup so the
// ranker will not embed the query a second time.
func (c *ResponseCache) GetResponse(ctx context.Context, qc *model.QueryContext, domain string, maxResults, maxChunks int) ([]byte, string, bool) {
	logger := logutil.GetLogger(ctx)
	fp := Fingerprint(qc.Text, domain, maxResults, maxChunks)

	payload, ok, err := c.exact.Get(ctx, fp)
	if err != nil {
		c.failures.Add(1)
		logger.Warn("exact cache tier get failed, treating as miss", zap.Error(err))
	} else if ok {
		c.exactHits.Add(1)
		if err := c.exact.Touch(ctx, fp); err != nil {
			logger.Warn("exact cache hit bookkeeping failed", zap.Error(err))
		}
		logger.Info("cache hit", zap.String("tier", TierExact))
		return payload, TierExact, true
	}

	if c.semantic != nil {
		payload, score, ok, err := c.semantic.Lookup(ctx, qc, domain, maxResults, maxChunks)
		switch {
		case errors.Is(err, appErr.ErrDimensionMismatch):
			// Mixed embedding models in one collection is a configuration
			// bug; keep serving (as a miss) but make it visible.
			c.failures.Add(1)
			logger.Error("semantic cache dimension mismatch, check embed model config", zap.Error(err))
		case err != nil:
			c.failures.Add(1)
			logger.Warn("semantic cache tier lookup failed, treating as miss", zap.Error(err))
		case ok:
			c.semanticHits.Add(1)
			logger.Info("cache hit", zap.String("tier", TierSemantic), zap.Float64("score", score))
			return payload, TierSemantic, true
		}
	}

	c.misses.Add(1)
	return nil, "", false
}

// PutResponse writes the payload to both tiers. Failures are logged and
// swallowed; the response has already been computed and must reach the
// caller regardless.
func (c *ResponseCache) PutResponse(ctx context.Context, qc *model.QueryContext, domain string, maxResults, maxChunks int, payload []byte) {
	logger := logutil.GetLogger(ctx)
	fp := Fingerprint(qc.Text, domain, maxResults, maxChunks)
	if err := c.exact.Put(ctx, fp, payload, c.responseTTL); err != nil {
		c.failures.Add(1)
		logger.Warn("exact cache tier put failed", zap.Error(err))
	}
	if c.semantic != nil {
		if err := c.semantic.Store(ctx, qc, domain, maxResults, maxChunks, payload); err != nil {
			c.failures.Add(1)
			logger.Warn("semantic cache tier store failed", zap.Error(err))
		}
	}
}

func (c *ResponseCache) Stats() Stats {
	return Stats{
		ExactHits:    c.exactHits.Load(),
		SemanticHits: c.semanticHits.Load(),
		Misses:       c.misses.Load(),
		Failures:     c.failures.Load(),
	}
}
