package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	embedCalls int
	batchCalls int
	batchSizes []int
	fail       bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.embedCalls++
	if c.fail {
		return nil, errors.New("backend down")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	c.batchCalls++
	c.batchSizes = append(c.batchSizes, len(texts))
	if c.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text)), 1})
	}
	return out, nil
}

func (c *countingEmbedder) ModelName() string { return "counting" }

func TestLruEmbedderCachesRepeatedText(t *testing.T) {
	backend := &countingEmbedder{}
	emb := WrapLruCacheToEmbedder(backend, 16, time.Minute)
	ctx := context.Background()

	first, err := emb.Embed(ctx, "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	second, err := emb.Embed(ctx, "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, backend.embedCalls)
}

func TestLruEmbedderTaskTypePartitionsCache(t *testing.T) {
	backend := &countingEmbedder{}
	emb := WrapLruCacheToEmbedder(backend, 16, time.Minute)
	ctx := context.Background()

	_, err := emb.Embed(ctx, "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	_, err = emb.Embed(ctx, "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, 2, backend.embedCalls)
}

func TestLruEmbedderBatchOnlyForwardsMisses(t *testing.T) {
	backend := &countingEmbedder{}
	emb := WrapLruCacheToEmbedder(backend, 16, time.Minute)
	ctx := context.Background()

	_, err := emb.Embed(ctx, "aa", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)

	vecs, err := emb.EmbedBatch(ctx, []string{"aa", "bbb", "cccc"}, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Equal(t, []float32{2, 1}, vecs[0])
	require.Equal(t, []float32{3, 1}, vecs[1])
	require.Equal(t, []float32{4, 1}, vecs[2])
	require.Equal(t, 1, backend.batchCalls)
	require.Equal(t, []int{2}, backend.batchSizes)

	// Everything is now warm; no further backend traffic.
	_, err = emb.EmbedBatch(ctx, []string{"aa", "bbb", "cccc"}, "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 1, backend.batchCalls)
}

func TestLruEmbedderBatchFailurePropagates(t *testing.T) {
	backend := &countingEmbedder{fail: true}
	emb := WrapLruCacheToEmbedder(backend, 16, time.Minute)

	_, err := emb.EmbedBatch(context.Background(), []string{"a", "b"}, "RETRIEVAL_DOCUMENT")
	require.Error(t, err)
}

func TestWrapLruCacheDisabled(t *testing.T) {
	backend := &countingEmbedder{}
	require.Equal(t, backend, WrapLruCacheToEmbedder(backend, 0, time.Minute))
	require.Equal(t, backend, WrapLruCacheToEmbedder(backend, 16, 0))
}
