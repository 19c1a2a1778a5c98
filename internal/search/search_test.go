package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalorin/webseek/internal/cache"
	appErr "github.com/kalorin/webseek/internal/pkg/errors"
)

func TestBraveSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		require.Equal(t, "baggage fees site:example.com", r.URL.Query().Get("q"))
		require.Equal(t, "3", r.URL.Query().Get("count"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"url":"https://example.com/a"},
			{"url":"https://example.com/b"},
			{"url":"https://example.com/c"},
			{"url":"https://example.com/d"}
		]}}`))
	}))
	defer srv.Close()

	b := &braveSearcher{apiKey: "test-key", baseURL: srv.URL, client: srv.Client()}
	urls, err := b.Search(context.Background(), "baggage fees", "example.com", 3)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}, urls)
}

func TestBraveSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := &braveSearcher{apiKey: "test-key", baseURL: srv.URL, client: srv.Client()}
	_, err := b.Search(context.Background(), "q", "example.com", 3)
	require.Error(t, err)
}

func TestSerpAPIParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "serp-key", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic_results":[
			{"link":"https://example.com/x"},
			{"link":"https://example.com/y"}
		]}`))
	}))
	defer srv.Close()

	s := &serpAPISearcher{apiKey: "serp-key", baseURL: srv.URL, client: srv.Client()}
	urls, err := s.Search(context.Background(), "q", "example.com", 5)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/x", "https://example.com/y"}, urls)
}

func TestDuckDuckGoParsesRedirectLinks(t *testing.T) {
	page := `<html><body>
		<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage1&rut=abc">One</a>
		<a class="result__a" href="https://example.com/page2">Two</a>
		<a class="other" href="https://ads.example.net/ignore">Ad</a>
	</body></html>`
	urls, err := parseDuckDuckGoResults(strings.NewReader(page))
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/page1", "https://example.com/page2"}, urls)
}

type scriptedSearcher struct {
	name  string
	urls  []string
	err   error
	calls int
}

func (s *scriptedSearcher) Name() string { return s.name }

func (s *scriptedSearcher) Search(ctx context.Context, query string, domain string, maxResults int) ([]string, error) {
	s.calls++
	return s.urls, s.err
}

func TestChainFallsThroughOnErrorAndEmpty(t *testing.T) {
	failing := &scriptedSearcher{name: "a", err: errors.New("down")}
	empty := &scriptedSearcher{name: "b"}
	working := &scriptedSearcher{name: "c", urls: []string{"https://example.com/hit"}}

	chain := NewChain(failing, empty, working)
	urls, err := chain.Search(context.Background(), "q", "example.com", 5)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/hit"}, urls)
	require.Equal(t, 1, failing.calls)
	require.Equal(t, 1, empty.calls)
}

func TestChainExhaustedReturnsNoResults(t *testing.T) {
	chain := NewChain(&scriptedSearcher{name: "a"}, &scriptedSearcher{name: "b", err: errors.New("down")})
	_, err := chain.Search(context.Background(), "q", "example.com", 5)
	require.ErrorIs(t, err, appErr.ErrNoSearchResults)
}

func TestCachedSearcherMemoizes(t *testing.T) {
	backend := &scriptedSearcher{name: "backend", urls: []string{"https://example.com/a"}}
	kv, err := cache.NewMemoryKV(16)
	require.NoError(t, err)
	searcher := WrapCacheToSearcher(backend, kv, time.Hour)
	ctx := context.Background()

	urls, err := searcher.Search(ctx, "q", "example.com", 5)
	require.NoError(t, err)
	require.Equal(t, backend.urls, urls)

	urls, err = searcher.Search(ctx, "q", "example.com", 5)
	require.NoError(t, err)
	require.Equal(t, backend.urls, urls)
	require.Equal(t, 1, backend.calls)

	// Different max_results is a different key.
	_, err = searcher.Search(ctx, "q", "example.com", 3)
	require.NoError(t, err)
	require.Equal(t, 2, backend.calls)
}

func TestSiteQuery(t *testing.T) {
	require.Equal(t, "fees site:example.com", siteQuery("fees", "example.com"))
	require.Equal(t, "fees", siteQuery("fees", " "))
}
