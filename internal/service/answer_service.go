package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/kalorin/webseek/internal/ai"
	"github.com/kalorin/webseek/internal/cache"
	"github.com/kalorin/webseek/internal/chunker"
	"github.com/kalorin/webseek/internal/model"
	appErr "github.com/kalorin/webseek/internal/pkg/errors"
	"github.com/kalorin/webseek/internal/ranker"
	"github.com/kalorin/webseek/internal/search"
)

const defaultPromptTemplate = `You are a virtual agent answering customer questions directly.

Context from the website:
{context}

Customer question: {query}

CRITICAL INSTRUCTIONS:
1. Start your answer immediately with the information - NO introductory phrases
2. DO NOT include source citations like (Source 1) or (Source 2) in your answer
3. Just provide the answer content directly and naturally

NEVER start with:
- "According to..."
- "Based on..."
- "The information shows..."

NEVER include source references:
- Do NOT write "(Source 1)" or "(Source 2)" in your answer
- Source information will be provided separately to the caller

If the context does not contain the answer, say you could not find that
information on the website.

Answer:`

const (
	answerNoResults = "No relevant search results found for your query."
	answerNoContent = "Unable to retrieve content from search results."
)

// Scraper is the batch page fetcher used by the pipeline; see the scraper
// package for the cached and uncached implementations.
type Scraper interface {
	ScrapePages(ctx context.Context, urls []string) []*model.Page
}

// Defaults are the server-side values applied when a request leaves a knob
// unset.
type Defaults struct {
	TargetDomain string
	Model        string
	ChunkSize    int
	ChunkOverlap int
	MaxResults   int
	MaxChunks    int
}

// Request is one fully-resolved answer request. Zero fields fall back to the
// service defaults.
type Request struct {
	Query        string
	MaxResults   int
	MaxChunks    int
	SystemPrompt string
	TargetDomain string
	Model        string
	ChunkSize    int
	ChunkOverlap int
}

// AnswerService runs the search, scrape, chunk, rank, generate pipeline with
// the response cache in front of it.
type AnswerService struct {
	searcher  search.ISearcher
	scraper   Scraper
	ranker    *ranker.Ranker
	provider  ai.IProvider
	respCache *cache.ResponseCache
	defaults  Defaults
	aiTimeout time.Duration
}

func NewAnswerService(searcher search.ISearcher, scraper Scraper, rk *ranker.Ranker,
	provider ai.IProvider, respCache *cache.ResponseCache, defaults Defaults, aiTimeout time.Duration) *AnswerService {
	return &AnswerService{
		searcher:  searcher,
		scraper:   scraper,
		ranker:    rk,
		provider:  provider,
		respCache: respCache,
		defaults:  defaults,
		aiTimeout: aiTimeout,
	}
}

func (s *AnswerService) resolve(req *Request) {
	req.Query = strings.TrimSpace(req.Query)
	if req.TargetDomain == "" {
		req.TargetDomain = s.defaults.TargetDomain
	}
	if req.Model == "" {
		req.Model = s.defaults.Model
	}
	if req.ChunkSize <= 0 {
		req.ChunkSize = s.defaults.ChunkSize
	}
	if req.ChunkOverlap <= 0 {
		req.ChunkOverlap = s.defaults.ChunkOverlap
	}
	if req.MaxResults <= 0 {
		req.MaxResults = s.defaults.MaxResults
	}
	if req.MaxChunks <= 0 {
		req.MaxChunks = s.defaults.MaxChunks
	}
}

// Answer resolves the request through the cache tiers first and runs the
// full pipeline on a miss. Only complete pipeline runs are written back to
// the cache; the "no results" fallbacks are transient and stay uncached.
func (s *AnswerService) Answer(ctx context.Context, req *Request) (*model.Answer, error) {
	s.resolve(req)
	logger := logutil.GetLogger(ctx)
	start := time.Now()

	qc := &model.QueryContext{Text: req.Query}
	if s.respCache != nil {
		if payload, tier, ok := s.respCache.GetResponse(ctx, qc, req.TargetDomain, req.MaxResults, req.MaxChunks); ok {
			var ans model.Answer
			if err := json.Unmarshal(payload, &ans); err == nil {
				ans.Metadata.CacheTier = tier
				ans.Metadata.TotalTimeMS = time.Since(start).Milliseconds()
				return &ans, nil
			}
			logger.Warn("cached response payload corrupt, recomputing", zap.String("tier", tier))
		}
	}

	urls, err := s.searcher.Search(ctx, req.Query, req.TargetDomain, req.MaxResults)
	if err != nil {
		if errors.Is(err, appErr.ErrNoSearchResults) {
			return s.fallbackAnswer(req, answerNoResults, nil, start), nil
		}
		return nil, err
	}
	if len(urls) == 0 {
		return s.fallbackAnswer(req, answerNoResults, nil, start), nil
	}
	logger.Info("search complete", zap.Int("urls", len(urls)))

	pages := s.scraper.ScrapePages(ctx, urls)
	if len(pages) == 0 {
		return s.fallbackAnswer(req, answerNoContent, urls, start), nil
	}

	splitter := chunker.New(req.ChunkSize, req.ChunkOverlap)
	deref := make([]model.Page, 0, len(pages))
	for _, p := range pages {
		deref = append(deref, *p)
	}
	chunks := splitter.SplitPages(deref)
	logger.Info("chunking complete", zap.Int("pages", len(pages)), zap.Int("chunks", len(chunks)))

	ranked, err := s.ranker.Rank(ctx, qc, chunks, req.MaxChunks)
	if err != nil {
		// Ranking trouble should not lose the whole request; answer from the
		// leading chunks without similarity ordering.
		logger.Warn("ranking failed, answering from unranked chunks", zap.Error(err))
		ranked = unrankedPrefix(chunks, req.MaxChunks)
	}

	answerText, err := s.generate(ctx, req, formatContext(ranked))
	if err != nil {
		return nil, err
	}

	ans := s.buildAnswer(req, answerText, ranked, len(pages), start)
	if s.respCache != nil {
		if payload, err := json.Marshal(ans); err == nil {
			s.respCache.PutResponse(ctx, qc, req.TargetDomain, req.MaxResults, req.MaxChunks, payload)
		}
	}
	return ans, nil
}

func (s *AnswerService) generate(ctx context.Context, req *Request, contextText string) (string, error) {
	template := req.SystemPrompt
	if template == "" {
		template = defaultPromptTemplate
	}
	prompt := strings.ReplaceAll(template, "{context}", contextText)
	prompt = strings.ReplaceAll(prompt, "{query}", req.Query)

	genCtx := ctx
	if s.aiTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.aiTimeout)
		defer cancel()
	}
	answer, err := s.provider.Generate(genCtx, req.Model, prompt)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: answer generation", appErr.ErrTimeout)
		}
		return "", fmt.Errorf("%w: %v", appErr.ErrProvider, err)
	}
	return strings.TrimSpace(answer), nil
}

// formatContext labels each chunk with its source so the model can ground
// its answer; the caller strips the labels from the final text.
func formatContext(ranked []model.RankedChunk) string {
	parts := make([]string, 0, len(ranked))
	for i, rc := range ranked {
		parts = append(parts, fmt.Sprintf("[Source %d: %s]\n%s", i+1, rc.Source, strings.TrimSpace(rc.Content)))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (s *AnswerService) buildAnswer(req *Request, text string, ranked []model.RankedChunk, pagesScraped int, start time.Time) *model.Answer {
	seen := make(map[string]struct{}, len(ranked))
	sources := make([]string, 0, len(ranked))
	details := make([]model.SourceDetail, 0, len(ranked))
	for _, rc := range ranked {
		if _, ok := seen[rc.Source]; !ok {
			seen[rc.Source] = struct{}{}
			sources = append(sources, rc.Source)
		}
		details = append(details, model.SourceDetail{
			Rank:            rc.Rank,
			SimilarityScore: roundScore(rc.Score),
			URL:             rc.Source,
			ContentPreview:  preview(rc.Content),
		})
	}
	return &model.Answer{
		Answer:        text,
		Sources:       sources,
		SourceDetails: details,
		Metadata: model.AnswerMetadata{
			ChunksProcessed: len(ranked),
			URLsScraped:     pagesScraped,
			TotalTimeMS:     time.Since(start).Milliseconds(),
			TargetDomain:    req.TargetDomain,
			Model:           req.Model,
			ChunkSize:       req.ChunkSize,
			ChunkOverlap:    req.ChunkOverlap,
		},
	}
}

func (s *AnswerService) fallbackAnswer(req *Request, text string, sources []string, start time.Time) *model.Answer {
	if sources == nil {
		sources = []string{}
	}
	return &model.Answer{
		Answer:  text,
		Sources: sources,
		Metadata: model.AnswerMetadata{
			TotalTimeMS:  time.Since(start).Milliseconds(),
			TargetDomain: req.TargetDomain,
			Model:        req.Model,
			ChunkSize:    req.ChunkSize,
			ChunkOverlap: req.ChunkOverlap,
		},
	}
}

func unrankedPrefix(chunks []model.Chunk, maxChunks int) []model.RankedChunk {
	if maxChunks > 0 && len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	ranked := make([]model.RankedChunk, 0, len(chunks))
	for i, c := range chunks {
		ranked = append(ranked, model.RankedChunk{Chunk: c, Rank: i + 1, Score: 0})
	}
	return ranked
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}

func preview(content string) string {
	const limit = 200
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
