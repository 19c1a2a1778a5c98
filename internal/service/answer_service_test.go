package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalorin/webseek/internal/ai"
	"github.com/kalorin/webseek/internal/cache"
	"github.com/kalorin/webseek/internal/model"
	"github.com/kalorin/webseek/internal/ranker"
	"github.com/kalorin/webseek/internal/search"
)

type fakeSearcher struct {
	urls  []string
	err   error
	calls int
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(ctx context.Context, query string, domain string, maxResults int) ([]string, error) {
	f.calls++
	return f.urls, f.err
}

type fakeScraper struct {
	pages []*model.Page
	calls int
}

func (f *fakeScraper) ScrapePages(ctx context.Context, urls []string) []*model.Page {
	f.calls++
	return f.pages
}

type fakeProvider struct {
	answer     string
	err        error
	lastPrompt string
	lastModel  string
	genCalls   int
	embedFail  bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	f.genCalls++
	f.lastModel = model
	f.lastPrompt = prompt
	return f.answer, f.err
}

func (f *fakeProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if f.embedFail {
		return nil, errors.New("embed backend down")
	}
	return embedOf(text), nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, model string, texts []string, taskType string) ([][]float32, error) {
	if f.embedFail {
		return nil, errors.New("embed backend down")
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, embedOf(text))
	}
	return out, nil
}

// embedOf gives texts mentioning baggage a vector near the query axis so
// similarity ordering in the tests is deterministic.
func embedOf(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "baggage") {
		return []float32{1, 0.1}
	}
	return []float32{0.1, 1}
}

func defaultsForTest() Defaults {
	return Defaults{
		TargetDomain: "example.com",
		Model:        "test-model",
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MaxResults:   5,
		MaxChunks:    10,
	}
}

func newServiceForTest(t *testing.T, searcher *fakeSearcher, scraper *fakeScraper, provider *fakeProvider) *AnswerService {
	t.Helper()
	kv, err := cache.NewMemoryKV(64)
	require.NoError(t, err)
	respCache := cache.NewResponseCache(kv, nil, time.Hour)
	rk := ranker.New(ai.NewEmbedder(provider, "embed-model"))
	return NewAnswerService(searcher, scraper, rk, provider, respCache, defaultsForTest(), 5*time.Second)
}

func pageOf(url, content string) *model.Page {
	return &model.Page{Source: url, Content: content}
}

func TestAnswerFullPipeline(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/baggage"}}
	scraper := &fakeScraper{pages: []*model.Page{
		pageOf("https://example.com/baggage", "Checked baggage costs $30 for the first bag."),
		pageOf("https://example.com/other", "Our loyalty program has four tiers."),
	}}
	provider := &fakeProvider{answer: "Checked bags cost $30."}
	svc := newServiceForTest(t, searcher, scraper, provider)

	ans, err := svc.Answer(context.Background(), &Request{Query: "baggage fees"})
	require.NoError(t, err)
	require.Equal(t, "Checked bags cost $30.", ans.Answer)
	require.NotEmpty(t, ans.Sources)
	require.Equal(t, "https://example.com/baggage", ans.Sources[0])
	require.NotEmpty(t, ans.SourceDetails)
	require.Equal(t, 1, ans.SourceDetails[0].Rank)
	require.Greater(t, ans.SourceDetails[0].SimilarityScore, 0.9)
	require.Equal(t, 2, ans.Metadata.URLsScraped)
	require.Equal(t, "example.com", ans.Metadata.TargetDomain)
	require.Equal(t, "test-model", ans.Metadata.Model)
	require.Empty(t, ans.Metadata.CacheTier)

	require.Contains(t, provider.lastPrompt, "Customer question: baggage fees")
	require.Contains(t, provider.lastPrompt, "[Source 1: https://example.com/baggage]")
}

func TestAnswerServedFromCacheOnRepeat(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/baggage"}}
	scraper := &fakeScraper{pages: []*model.Page{
		pageOf("https://example.com/baggage", "Checked baggage costs $30 for the first bag."),
	}}
	provider := &fakeProvider{answer: "Checked bags cost $30."}
	svc := newServiceForTest(t, searcher, scraper, provider)
	ctx := context.Background()

	_, err := svc.Answer(ctx, &Request{Query: "baggage fees"})
	require.NoError(t, err)

	ans, err := svc.Answer(ctx, &Request{Query: "baggage fees"})
	require.NoError(t, err)
	require.Equal(t, cache.TierExact, ans.Metadata.CacheTier)
	require.Equal(t, "Checked bags cost $30.", ans.Answer)
	require.Equal(t, 1, provider.genCalls)
	require.Equal(t, 1, searcher.calls)
}

func TestAnswerDifferentParamsBypassCache(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/baggage"}}
	scraper := &fakeScraper{pages: []*model.Page{
		pageOf("https://example.com/baggage", "Checked baggage costs $30 for the first bag."),
	}}
	provider := &fakeProvider{answer: "Checked bags cost $30."}
	svc := newServiceForTest(t, searcher, scraper, provider)
	ctx := context.Background()

	_, err := svc.Answer(ctx, &Request{Query: "baggage fees", MaxChunks: 5})
	require.NoError(t, err)
	_, err = svc.Answer(ctx, &Request{Query: "baggage fees", MaxChunks: 10})
	require.NoError(t, err)
	require.Equal(t, 2, provider.genCalls)
}

func TestAnswerNoSearchResults(t *testing.T) {
	searcher := &fakeSearcher{}
	scraper := &fakeScraper{}
	provider := &fakeProvider{}
	svc := newServiceForTest(t, searcher, scraper, provider)

	chain := search.NewChain(searcher)
	svc.searcher = chain
	ans, err := svc.Answer(context.Background(), &Request{Query: "anything"})
	require.NoError(t, err)
	require.Equal(t, answerNoResults, ans.Answer)
	require.Empty(t, ans.Sources)
	require.Zero(t, provider.genCalls)
	require.Zero(t, scraper.calls)

	// Fallback answers are not cached.
	ans, err = svc.Answer(context.Background(), &Request{Query: "anything"})
	require.NoError(t, err)
	require.Empty(t, ans.Metadata.CacheTier)
}

func TestAnswerNoScrapedContent(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/a", "https://example.com/b"}}
	scraper := &fakeScraper{}
	provider := &fakeProvider{}
	svc := newServiceForTest(t, searcher, scraper, provider)

	ans, err := svc.Answer(context.Background(), &Request{Query: "anything"})
	require.NoError(t, err)
	require.Equal(t, answerNoContent, ans.Answer)
	require.Equal(t, searcher.urls, ans.Sources)
	require.Zero(t, provider.genCalls)
}

func TestAnswerRankingFailureFallsBackUnranked(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/baggage"}}
	scraper := &fakeScraper{pages: []*model.Page{
		pageOf("https://example.com/baggage", "Checked baggage costs $30 for the first bag."),
	}}
	provider := &fakeProvider{answer: "Checked bags cost $30.", embedFail: true}
	svc := newServiceForTest(t, searcher, scraper, provider)

	ans, err := svc.Answer(context.Background(), &Request{Query: "baggage fees"})
	require.NoError(t, err)
	require.Equal(t, "Checked bags cost $30.", ans.Answer)
	require.NotEmpty(t, ans.SourceDetails)
	require.Zero(t, ans.SourceDetails[0].SimilarityScore)
}

func TestAnswerCustomPromptTemplate(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/baggage"}}
	scraper := &fakeScraper{pages: []*model.Page{
		pageOf("https://example.com/baggage", "Checked baggage costs $30 for the first bag."),
	}}
	provider := &fakeProvider{answer: "ok"}
	svc := newServiceForTest(t, searcher, scraper, provider)

	_, err := svc.Answer(context.Background(), &Request{
		Query:        "baggage fees",
		SystemPrompt: "Q: {query}\nDocs: {context}\nA:",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(provider.lastPrompt, "Q: baggage fees\nDocs: "))
}

func TestAnswerGenerationFailurePropagates(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/baggage"}}
	scraper := &fakeScraper{pages: []*model.Page{
		pageOf("https://example.com/baggage", "Checked baggage costs $30 for the first bag."),
	}}
	provider := &fakeProvider{err: errors.New("model overloaded")}
	svc := newServiceForTest(t, searcher, scraper, provider)

	_, err := svc.Answer(context.Background(), &Request{Query: "baggage fees"})
	require.Error(t, err)
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("x", 250)
	require.Equal(t, strings.Repeat("x", 200)+"...", preview(long))
	require.Equal(t, "short", preview("short"))
}
