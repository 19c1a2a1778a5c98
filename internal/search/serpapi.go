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

const defaultSerpAPIBaseURL = "https://serpapi.com/search"

type serpAPISearcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Link string `json:"link"`
	} `json:"organic_results"`
}

func NewSerpAPI(apiKey string, timeout time.Duration) ISearcher {
	return &serpAPISearcher{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: defaultSerpAPIBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *serpAPISearcher) Name() string {
	return "serpapi"
}

func (s *serpAPISearcher) Search(ctx context.Context, query string, domain string, maxResults int) ([]string, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("serpapi key not configured")
	}
	params := url.Values{}
	params.Set("q", siteQuery(query, domain))
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("serpapi search failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(out.OrganicResults))
	for _, r := range out.OrganicResults {
		if r.Link != "" {
			urls = append(urls, r.Link)
		}
	}
	return truncateURLs(urls, maxResults), nil
}
