package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kalorin/webseek/internal/model"
	"github.com/kalorin/webseek/internal/pkg/timeutil"
)

// KVStore is the backing key-value store of the exact-match, search and
// content tiers. Implementations must never return a payload past its TTL.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Touch(ctx context.Context, key string) error
}

// MemoryKV is an in-process KVStore over an LRU with per-entry expiry,
// checked lazily on read.
type MemoryKV struct {
	mu  sync.Mutex
	lru *lru.Cache[string, model.CacheEntry]
}

func NewMemoryKV(size int) (*MemoryKV, error) {
	cache, err := lru.New[string, model.CacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryKV{lru: cache}, nil
}

func (m *MemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.ExpireAt <= timeutil.NowMS() {
		m.lru.Remove(key)
		return nil, false, nil
	}
	payload := make([]byte, len(entry.Payload))
	copy(payload, entry.Payload)
	return payload, true, nil
}

func (m *MemoryKV) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	_ = ctx
	now := timeutil.NowMS()
	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, model.CacheEntry{
		Key:      key,
		Payload:  stored,
		Ctime:    now,
		ExpireAt: now + ttl.Milliseconds(),
	})
	return nil
}

func (m *MemoryKV) Touch(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.lru.Peek(key); ok {
		entry.HitCount++
		m.lru.Add(key, entry)
	}
	return nil
}
