package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// ExpirySweeper removes entries whose expiry has passed.
type ExpirySweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// PartitionEvictor trims each partition down to its keep most recently hit
// entries.
type PartitionEvictor interface {
	EvictBeyond(ctx context.Context, keep int) (int64, error)
}

// CacheCleanupJob sweeps the exact and semantic tiers. Expired rows are
// already invisible to lookups; the sweep reclaims the space and caps the
// semantic tier's per-partition size.
type CacheCleanupJob struct {
	kv       ExpirySweeper
	semantic ExpirySweeper
	evictor  PartitionEvictor
	keep     int
}

func NewCacheCleanupJob(kv ExpirySweeper, semantic ExpirySweeper, evictor PartitionEvictor, keep int) *CacheCleanupJob {
	return &CacheCleanupJob{kv: kv, semantic: semantic, evictor: evictor, keep: keep}
}

func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	if j.kv != nil {
		removed, err := j.kv.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		logger.Info("swept exact cache tier", zap.Int64("removed", removed))
	}
	if j.semantic != nil {
		removed, err := j.semantic.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		logger.Info("swept semantic cache tier", zap.Int64("removed", removed))
	}
	if j.evictor != nil && j.keep > 0 {
		evicted, err := j.evictor.EvictBeyond(ctx, j.keep)
		if err != nil {
			return err
		}
		logger.Info("evicted semantic cache overflow", zap.Int64("evicted", evicted), zap.Int("keep", j.keep))
	}
	return nil
}
