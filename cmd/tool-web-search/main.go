// tool-web-search queries the Brave Search API. Requires the
// BRAVE_API_KEY environment variable.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jarvislabs/jarvis/internal/toolproc"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

var httpClient = &http.Client{Timeout: 30 * time.Second}

func main() {
	toolproc.Main(map[string]toolproc.Handler{
		"search":      webSearch,
		"news_search": newsSearch,
	})
}

type braveResponse struct {
	Query struct {
		Original string `json:"original"`
	} `json:"query"`
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
	News struct {
		Results []braveResult `json:"results"`
	} `json:"news"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age"`
	Source      string `json:"source,omitempty"`
}

type searchResult struct {
	Query   string        `json:"query"`
	Count   int           `json:"count"`
	Results []braveResult `json:"results"`
}

func webSearch(req toolproc.Request) (any, error) {
	return runSearch(req, false)
}

func newsSearch(req toolproc.Request) (any, error) {
	return runSearch(req, true)
}

func runSearch(req toolproc.Request, newsOnly bool) (any, error) {
	query := req.String("query", "")
	if query == "" {
		return nil, fmt.Errorf("query parameter is required")
	}

	count := req.Int("count", 10)
	if count < 1 || count > 20 {
		count = 10
	}

	apiKey := os.Getenv("BRAVE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY environment variable is not set")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", count))
	params.Set("country", req.String("country", "us"))
	if newsOnly {
		params.Set("search_lang", "en")
		params.Set("freshness", "pw")
	}

	httpReq, err := http.NewRequest(http.MethodGet, braveSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", apiKey)

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded braveResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := decoded.Web.Results
	if newsOnly {
		results = decoded.News.Results
	}
	if results == nil {
		results = []braveResult{}
	}

	return searchResult{
		Query:   decoded.Query.Original,
		Count:   len(results),
		Results: results,
	}, nil
}
