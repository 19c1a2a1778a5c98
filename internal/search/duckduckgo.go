package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const defaultDuckDuckGoBaseURL = "https://html.duckduckgo.com/html/"

// duckDuckGoSearcher scrapes the keyless HTML endpoint. It is the last
// resort of the chain when no API key is configured.
type duckDuckGoSearcher struct {
	baseURL string
	client  *http.Client
}

func NewDuckDuckGo(timeout time.Duration) ISearcher {
	return &duckDuckGoSearcher{
		baseURL: defaultDuckDuckGoBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *duckDuckGoSearcher) Name() string {
	return "duckduckgo"
}

func (d *duckDuckGoSearcher) Search(ctx context.Context, query string, domain string, maxResults int) ([]string, error) {
	params := url.Values{}
	params.Set("q", siteQuery(query, domain))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; webseek/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("duckduckgo search failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	urls, err := parseDuckDuckGoResults(resp.Body)
	if err != nil {
		return nil, err
	}
	return truncateURLs(urls, maxResults), nil
}

// parseDuckDuckGoResults pulls the result anchors out of the HTML page.
// Result links are wrapped in a redirect whose uddg parameter carries the
// real URL.
func parseDuckDuckGoResults(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var urls []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			if href := attrValue(n, "href"); href != "" {
				if target := resolveRedirect(href); target != "" {
					urls = append(urls, target)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return urls, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}
