package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/kalorin/webseek/internal/model"
	"github.com/kalorin/webseek/internal/pkg/timeutil"
)

// SemanticCacheRepo stores semantic response entries. The candidate set of a
// lookup is partitioned by (domain, max_results, max_chunks, model_name);
// those change the response shape or the vector space and never match
// fuzzily.
type SemanticCacheRepo struct {
	db *sql.DB
}

func NewSemanticCacheRepo(db *sql.DB) *SemanticCacheRepo {
	return &SemanticCacheRepo{db: db}
}

func (r *SemanticCacheRepo) Insert(ctx context.Context, entry *model.SemanticEntry) error {
	const query = `
		INSERT INTO semantic_cache
			(id, query, model_name, domain, max_results, max_chunks, embedding, payload, hit_count, ctime, last_hit, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Query,
		entry.ModelName,
		entry.Domain,
		entry.MaxResults,
		entry.MaxChunks,
		pgvector.NewVector(entry.Embedding),
		entry.Payload,
		entry.HitCount,
		entry.Ctime,
		entry.LastHit,
		entry.ExpireAt,
	)
	return err
}

// ListCandidates returns the most recently hit live entries of one partition,
// newest first, at most limit rows. Used by the linear search strategy.
func (r *SemanticCacheRepo) ListCandidates(ctx context.Context, domain string, maxResults, maxChunks int, modelName string, limit int) ([]model.SemanticEntry, error) {
	const query = `
		SELECT id, query, model_name, domain, max_results, max_chunks, embedding, payload, hit_count, ctime, last_hit, expire_at
		FROM semantic_cache
		WHERE domain = $1 AND max_results = $2 AND max_chunks = $3 AND model_name = $4 AND expire_at > $5
		ORDER BY last_hit DESC, ctime DESC
		LIMIT $6
	`
	rows, err := r.db.QueryContext(ctx, query, domain, maxResults, maxChunks, modelName, timeutil.NowMS(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.SemanticEntry
	for rows.Next() {
		entry, err := scanSemanticEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// SearchNearest pushes the nearest-neighbor search into postgres using the
// pgvector cosine-distance operator. Exact (non-approximate) ordering, so it
// agrees with the linear strategy for the same threshold.
func (r *SemanticCacheRepo) SearchNearest(ctx context.Context, domain string, maxResults, maxChunks int, modelName string, queryVec []float32, limit int) ([]model.SemanticEntry, []float64, error) {
	const query = `
		SELECT id, query, model_name, domain, max_results, max_chunks, embedding, payload, hit_count, ctime, last_hit, expire_at,
			1 - (embedding <=> $6) AS score
		FROM semantic_cache
		WHERE domain = $1 AND max_results = $2 AND max_chunks = $3 AND model_name = $4 AND expire_at > $5
		ORDER BY embedding <=> $6, last_hit DESC
		LIMIT $7
	`
	rows, err := r.db.QueryContext(ctx, query, domain, maxResults, maxChunks, modelName, timeutil.NowMS(), pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var entries []model.SemanticEntry
	var scores []float64
	for rows.Next() {
		var entry model.SemanticEntry
		var embedding pgvector.Vector
		var score float64
		if err := rows.Scan(
			&entry.ID, &entry.Query, &entry.ModelName, &entry.Domain,
			&entry.MaxResults, &entry.MaxChunks, &embedding, &entry.Payload,
			&entry.HitCount, &entry.Ctime, &entry.LastHit, &entry.ExpireAt,
			&score,
		); err != nil {
			return nil, nil, err
		}
		entry.Embedding = embedding.Slice()
		entries = append(entries, entry)
		scores = append(scores, score)
	}
	return entries, scores, rows.Err()
}

// Touch records a hit. Best effort; a lost increment under concurrent hits
// does not affect correctness.
func (r *SemanticCacheRepo) Touch(ctx context.Context, id string) error {
	const query = `UPDATE semantic_cache SET hit_count = hit_count + 1, last_hit = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, timeutil.NowMS())
	return err
}

func (r *SemanticCacheRepo) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM semantic_cache WHERE expire_at <= $1`
	res, err := r.db.ExecContext(ctx, query, timeutil.NowMS())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// EvictBeyond keeps at most keep entries per partition, preferring recently
// hit ones, and deletes the rest. Recency-based eviction matches the TTL
// model used elsewhere.
func (r *SemanticCacheRepo) EvictBeyond(ctx context.Context, keep int) (int64, error) {
	const query = `
		DELETE FROM semantic_cache WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY domain, max_results, max_chunks, model_name
					ORDER BY last_hit DESC, ctime DESC
				) AS rn
				FROM semantic_cache
			) ranked
			WHERE ranked.rn > $1
		)
	`
	res, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SemanticCacheRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM semantic_cache WHERE expire_at > $1`
	row := r.db.QueryRowContext(ctx, query, timeutil.NowMS())
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSemanticEntry(row rowScanner) (*model.SemanticEntry, error) {
	var entry model.SemanticEntry
	var embedding pgvector.Vector
	if err := row.Scan(
		&entry.ID, &entry.Query, &entry.ModelName, &entry.Domain,
		&entry.MaxResults, &entry.MaxChunks, &embedding, &entry.Payload,
		&entry.HitCount, &entry.Ctime, &entry.LastHit, &entry.ExpireAt,
	); err != nil {
		return nil, err
	}
	entry.Embedding = embedding.Slice()
	return &entry, nil
}
