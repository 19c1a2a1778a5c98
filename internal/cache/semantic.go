package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/kalorin/webseek/internal/ai"
	"github.com/kalorin/webseek/internal/model"
	"github.com/kalorin/webseek/internal/pkg/timeutil"
	"github.com/kalorin/webseek/internal/repo"
	"github.com/kalorin/webseek/internal/vector"
)

const taskTypeQuery = "RETRIEVAL_QUERY"

// Partition identifies one disjoint candidate set of the semantic tier.
// Entries in different partitions are never compared: the scalar parameters
// change the response shape, and mixing embedding models is undefined.
type Partition struct {
	Domain     string
	MaxResults int
	MaxChunks  int
	ModelName  string
}

// SemanticIndex is the similarity-search strategy behind the semantic tier.
// Nearest returns the single best live entry of the partition scoring at
// least minScore. Ties are broken toward the most recently hit entry; the
// result does not otherwise depend on insertion order.
type SemanticIndex interface {
	Insert(ctx context.Context, entry *model.SemanticEntry) error
	Nearest(ctx context.Context, p Partition, queryVec []float32, minScore float64) (*model.SemanticEntry, float64, bool, error)
	Touch(ctx context.Context, id string) error
}

// SemanticCache embeds an incoming query, finds the nearest stored query in
// the same partition and serves its payload when similarity clears the
// threshold.
type SemanticCache struct {
	embedder  ai.IEmbedder
	index     SemanticIndex
	threshold float64
	ttl       time.Duration
}

func NewSemanticCache(embedder ai.IEmbedder, index SemanticIndex, threshold float64, ttl time.Duration) *SemanticCache {
	return &SemanticCache{
		embedder:  embedder,
		index:     index,
		threshold: threshold,
		ttl:       ttl,
	}
}

// Lookup resolves qc's embedding once and reuses it for the rest of the
// request (the ranker reads it from qc afterwards).
func (s *SemanticCache) Lookup(ctx context.Context, qc *model.QueryContext, domain string, maxResults, maxChunks int) ([]byte, float64, bool, error) {
	if err := s.resolveEmbedding(ctx, qc); err != nil {
		return nil, 0, false, err
	}
	p := Partition{
		Domain:     NormalizeDomain(domain),
		MaxResults: maxResults,
		MaxChunks:  maxChunks,
		ModelName:  qc.ModelName,
	}
	entry, score, ok, err := s.index.Nearest(ctx, p, qc.Embedding, s.threshold)
	if err != nil || !ok {
		return nil, 0, false, err
	}
	if err := s.index.Touch(ctx, entry.ID); err != nil {
		logutil.GetLogger(ctx).Warn("semantic cache hit bookkeeping failed", zap.Error(err))
	}
	return entry.Payload, score, true, nil
}

// Store creates a new entry unconditionally; near-identical queries are not
// deduplicated. Growth is bounded by TTL expiry and the cleanup job's
// per-partition eviction.
func (s *SemanticCache) Store(ctx context.Context, qc *model.QueryContext, domain string, maxResults, maxChunks int, payload []byte) error {
	if err := s.resolveEmbedding(ctx, qc); err != nil {
		return err
	}
	now := timeutil.NowMS()
	return s.index.Insert(ctx, &model.SemanticEntry{
		ID:         uuid.NewString(),
		Query:      qc.Text,
		ModelName:  qc.ModelName,
		Domain:     NormalizeDomain(domain),
		MaxResults: maxResults,
		MaxChunks:  maxChunks,
		Embedding:  qc.Embedding,
		Payload:    payload,
		Ctime:      now,
		LastHit:    now,
		ExpireAt:   now + s.ttl.Milliseconds(),
	})
}

func (s *SemanticCache) resolveEmbedding(ctx context.Context, qc *model.QueryContext) error {
	if len(qc.Embedding) > 0 {
		return nil
	}
	emb, err := s.embedder.Embed(ctx, qc.Text, taskTypeQuery)
	if err != nil {
		return err
	}
	qc.Embedding = emb
	qc.ModelName = s.embedder.ModelName()
	return nil
}

// MemoryIndex is the in-process linear-scan strategy, suitable up to around
// a thousand candidates per partition.
type MemoryIndex struct {
	mu        sync.RWMutex
	entries   map[string]*model.SemanticEntry
	scanLimit int
}

func NewMemoryIndex(scanLimit int) *MemoryIndex {
	return &MemoryIndex{
		entries:   make(map[string]*model.SemanticEntry),
		scanLimit: scanLimit,
	}
}

func (m *MemoryIndex) Insert(ctx context.Context, entry *model.SemanticEntry) error {
	_ = ctx
	clone := *entry
	m.mu.Lock()
	m.entries[entry.ID] = &clone
	m.mu.Unlock()
	return nil
}

func (m *MemoryIndex) Nearest(ctx context.Context, p Partition, queryVec []float32, minScore float64) (*model.SemanticEntry, float64, bool, error) {
	_ = ctx
	now := timeutil.NowMS()
	// Snapshot the live candidates while holding the lock: a concurrent
	// Touch rewrites LastHit/HitCount in place, so nothing shared may leak
	// past RUnlock. Embedding slices are immutable after Insert and safe to
	// share.
	m.mu.RLock()
	var live []*model.SemanticEntry
	for _, entry := range m.entries {
		if entry.ExpireAt <= now {
			continue
		}
		if entry.Domain != p.Domain || entry.MaxResults != p.MaxResults ||
			entry.MaxChunks != p.MaxChunks || entry.ModelName != p.ModelName {
			continue
		}
		clone := *entry
		live = append(live, &clone)
	}
	m.mu.RUnlock()

	// Most recently hit first, then id for a stable total order. This is the
	// documented tie-break: equal scores resolve toward the fresher entry.
	sort.Slice(live, func(i, j int) bool {
		if live[i].LastHit != live[j].LastHit {
			return live[i].LastHit > live[j].LastHit
		}
		if live[i].Ctime != live[j].Ctime {
			return live[i].Ctime > live[j].Ctime
		}
		return live[i].ID < live[j].ID
	})
	if m.scanLimit > 0 && len(live) > m.scanLimit {
		live = live[:m.scanLimit]
	}

	candidates := make([]vector.Candidate, 0, len(live))
	for _, entry := range live {
		candidates = append(candidates, vector.Candidate{ID: entry.ID, Vector: entry.Embedding})
	}
	matches, err := vector.TopK(queryVec, candidates, 1, minScore)
	if err != nil {
		return nil, 0, false, err
	}
	if len(matches) == 0 {
		return nil, 0, false, nil
	}
	for _, entry := range live {
		if entry.ID == matches[0].ID {
			return entry, matches[0].Score, true, nil
		}
	}
	return nil, 0, false, nil
}

func (m *MemoryIndex) Touch(ctx context.Context, id string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[id]; ok {
		entry.HitCount++
		entry.LastHit = timeutil.NowMS()
	}
	return nil
}

// DeleteExpired removes dead entries; EvictBeyond keeps the most recently
// hit keep entries per partition. Both mirror the repo-backed sweeps so the
// cleanup job can run against either index.
func (m *MemoryIndex) DeleteExpired(ctx context.Context) (int64, error) {
	_ = ctx
	now := timeutil.NowMS()
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, entry := range m.entries {
		if entry.ExpireAt <= now {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryIndex) EvictBeyond(ctx context.Context, keep int) (int64, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	byPartition := make(map[Partition][]*model.SemanticEntry)
	for _, entry := range m.entries {
		p := Partition{entry.Domain, entry.MaxResults, entry.MaxChunks, entry.ModelName}
		byPartition[p] = append(byPartition[p], entry)
	}
	var removed int64
	for _, entries := range byPartition {
		if len(entries) <= keep {
			continue
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].LastHit != entries[j].LastHit {
				return entries[i].LastHit > entries[j].LastHit
			}
			return entries[i].Ctime > entries[j].Ctime
		})
		for _, entry := range entries[keep:] {
			delete(m.entries, entry.ID)
			removed++
		}
	}
	return removed, nil
}

// PGLinearIndex loads the partition's most recent candidates from postgres
// and scans them in process.
type PGLinearIndex struct {
	repo      *repo.SemanticCacheRepo
	scanLimit int
}

func NewPGLinearIndex(r *repo.SemanticCacheRepo, scanLimit int) *PGLinearIndex {
	return &PGLinearIndex{repo: r, scanLimit: scanLimit}
}

func (p *PGLinearIndex) Insert(ctx context.Context, entry *model.SemanticEntry) error {
	return p.repo.Insert(ctx, entry)
}

func (p *PGLinearIndex) Nearest(ctx context.Context, part Partition, queryVec []float32, minScore float64) (*model.SemanticEntry, float64, bool, error) {
	entries, err := p.repo.ListCandidates(ctx, part.Domain, part.MaxResults, part.MaxChunks, part.ModelName, p.scanLimit)
	if err != nil {
		return nil, 0, false, err
	}
	candidates := make([]vector.Candidate, 0, len(entries))
	for i := range entries {
		candidates = append(candidates, vector.Candidate{ID: entries[i].ID, Vector: entries[i].Embedding})
	}
	matches, err := vector.TopK(queryVec, candidates, 1, minScore)
	if err != nil {
		return nil, 0, false, err
	}
	if len(matches) == 0 {
		return nil, 0, false, nil
	}
	for i := range entries {
		if entries[i].ID == matches[0].ID {
			return &entries[i], matches[0].Score, true, nil
		}
	}
	return nil, 0, false, nil
}

func (p *PGLinearIndex) Touch(ctx context.Context, id string) error {
	return p.repo.Touch(ctx, id)
}

// PGVectorIndex pushes the search into postgres via the pgvector cosine
// operator; exact ordering, so it agrees with the linear strategies.
type PGVectorIndex struct {
	repo      *repo.SemanticCacheRepo
	scanLimit int
}

func NewPGVectorIndex(r *repo.SemanticCacheRepo, scanLimit int) *PGVectorIndex {
	return &PGVectorIndex{repo: r, scanLimit: scanLimit}
}

func (p *PGVectorIndex) Insert(ctx context.Context, entry *model.SemanticEntry) error {
	return p.repo.Insert(ctx, entry)
}

func (p *PGVectorIndex) Nearest(ctx context.Context, part Partition, queryVec []float32, minScore float64) (*model.SemanticEntry, float64, bool, error) {
	entries, scores, err := p.repo.SearchNearest(ctx, part.Domain, part.MaxResults, part.MaxChunks, part.ModelName, queryVec, 1)
	if err != nil {
		return nil, 0, false, err
	}
	if len(entries) == 0 || scores[0] < minScore {
		return nil, 0, false, nil
	}
	return &entries[0], scores[0], true, nil
}

func (p *PGVectorIndex) Touch(ctx context.Context, id string) error {
	return p.repo.Touch(ctx, id)
}

// NewIndex picks the search strategy from configuration.
func NewIndex(strategy string, r *repo.SemanticCacheRepo, scanLimit int) (SemanticIndex, error) {
	switch strategy {
	case "linear":
		return NewPGLinearIndex(r, scanLimit), nil
	case "pgvector":
		return NewPGVectorIndex(r, scanLimit), nil
	default:
		return nil, fmt.Errorf("unsupported semantic index strategy: %s", strategy)
	}
}
