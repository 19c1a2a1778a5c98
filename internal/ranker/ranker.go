// Package ranker selects the chunks most relevant to a query by embedding
// similarity.
package ranker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/kalorin/webseek/internal/ai"
	"github.com/kalorin/webseek/internal/model"
	appErr "github.com/kalorin/webseek/internal/pkg/errors"
	"github.com/kalorin/webseek/internal/vector"
)

// prefilterFactor bounds embedding cost: with more than maxChunks*prefilterFactor
// candidates, only the first maxChunks*prefilterFactor survive in original
// order. A precision/cost trade-off, not lossless ranking.
const prefilterFactor = 3

const taskTypeQuery = "RETRIEVAL_QUERY"
const taskTypeDocument = "RETRIEVAL_DOCUMENT"

type Ranker struct {
	embedder ai.IEmbedder
}

func New(embedder ai.IEmbedder) *Ranker {
	return &Ranker{embedder: embedder}
}

// Rank returns at most maxChunks chunks ordered by descending similarity to
// the query, each carrying its rank and score. qc.Embedding is reused when
// already present (the semantic cache lookup embeds the same query earlier
// in the request); otherwise the query is embedded here and written back
// into qc. There is no score floor: the ranker returns the best available
// chunks even when every score is low.
func (r *Ranker) Rank(ctx context.Context, qc *model.QueryContext, chunks []model.Chunk, maxChunks int) ([]model.RankedChunk, error) {
	if len(chunks) == 0 || maxChunks <= 0 {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("chunks", len(chunks)), zap.Int("max_chunks", maxChunks))

	if limit := maxChunks * prefilterFactor; len(chunks) > limit {
		logger.Debug("prefiltering chunks", zap.Int("kept", limit))
		chunks = chunks[:limit]
	}

	if len(qc.Embedding) == 0 {
		emb, err := r.embedder.Embed(ctx, qc.Text, taskTypeQuery)
		if err != nil {
			return nil, fmt.Errorf("%w: embed query: %v", appErr.ErrRanking, err)
		}
		qc.Embedding = emb
		qc.ModelName = r.embedder.ModelName()
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Content)
	}
	embs, err := r.embedder.EmbedBatch(ctx, texts, taskTypeDocument)
	if err != nil {
		return nil, fmt.Errorf("%w: embed chunks: %v", appErr.ErrRanking, err)
	}

	candidates := make([]vector.Candidate, 0, len(chunks))
	for i, emb := range embs {
		candidates = append(candidates, vector.Candidate{ID: strconv.Itoa(i), Vector: emb})
	}
	matches, err := vector.TopK(qc.Embedding, candidates, maxChunks, vector.NoMinScore)
	if err != nil {
		// Mixed embedding models reaching one comparison is a configuration
		// bug, not a transient failure.
		logger.Error("chunk ranking hit dimension mismatch", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrRanking, err)
	}

	ranked := make([]model.RankedChunk, 0, len(matches))
	for i, match := range matches {
		idx, _ := strconv.Atoi(match.ID)
		chunk := chunks[idx]
		chunk.Embedding = embs[idx]
		ranked = append(ranked, model.RankedChunk{
			Chunk: chunk,
			Rank:  i + 1,
			Score: match.Score,
		})
	}
	if len(ranked) > 0 {
		logger.Debug("chunks ranked",
			zap.Int("selected", len(ranked)),
			zap.Float64("top_score", ranked[0].Score),
		)
	}
	return ranked, nil
}
