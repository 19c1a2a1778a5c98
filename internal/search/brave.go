package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBraveBaseURL = "https://api.search.brave.com/res/v1/web/search"

type braveSearcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type braveResponse struct {
	Web struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"web"`
}

func NewBrave(apiKey string, timeout time.Duration) ISearcher {
	return &braveSearcher{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultBraveBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *braveSearcher) Name() string {
	return "brave"
}

func (b *braveSearcher) Search(ctx context.Context, query string, domain string, maxResults int) ([]string, error) {
	if b.apiKey == "" {
		return nil, fmt.Errorf("brave api key not configured")
	}
	params := url.Values{}
	params.Set("q", siteQuery(query, domain))
	params.Set("count", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("brave search failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(out.Web.Results))
	for _, r := range out.Web.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return truncateURLs(urls, maxResults), nil
}
