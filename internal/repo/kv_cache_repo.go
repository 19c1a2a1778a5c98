package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/kalorin/webseek/internal/pkg/timeutil"
)

// KVCacheRepo backs the exact-match, search and content cache tiers with a
// single TTL'd key-value table. Expired rows are invisible to Get and removed
// by the cleanup job.
type KVCacheRepo struct {
	db *sql.DB
}

func NewKVCacheRepo(db *sql.DB) *KVCacheRepo {
	return &KVCacheRepo{db: db}
}

func (r *KVCacheRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const query = `
		SELECT payload
		FROM kv_cache
		WHERE cache_key = $1 AND expire_at > $2
	`
	row := r.db.QueryRowContext(ctx, query, key, timeutil.NowMS())
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (r *KVCacheRepo) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := timeutil.NowMS()
	const query = `
		INSERT INTO kv_cache (cache_key, payload, hit_count, ctime, expire_at)
		VALUES ($1, $2, 0, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			hit_count = 0,
			ctime = EXCLUDED.ctime,
			expire_at = EXCLUDED.expire_at
	`
	_, err := r.db.ExecContext(ctx, query, key, payload, now, now+ttl.Milliseconds())
	return err
}

// Touch bumps the hit counter. Best effort: lost updates under races are
// acceptable, the counter is advisory.
func (r *KVCacheRepo) Touch(ctx context.Context, key string) error {
	const query = `UPDATE kv_cache SET hit_count = hit_count + 1 WHERE cache_key = $1`
	_, err := r.db.ExecContext(ctx, query, key)
	return err
}

func (r *KVCacheRepo) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM kv_cache WHERE expire_at <= $1`
	res, err := r.db.ExecContext(ctx, query, timeutil.NowMS())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *KVCacheRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM kv_cache WHERE expire_at > $1`
	row := r.db.QueryRowContext(ctx, query, timeutil.NowMS())
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
