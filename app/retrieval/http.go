package retrieval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"workbench/pkg/contextx"
)

const searchTimeout = 15 * time.Second

// HTTPProvider is a thin client for external retrieval collaborators, used
// for the vector and graph backends.
type HTTPProvider struct {
	endpoint   string
	searchPath string
	minScore   float64
	topK       int
	httpClient *http.Client
}

func NewHTTPProvider(endpoint, searchPath string, minScore float64, topK int) *HTTPProvider {
	return &HTTPProvider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		searchPath: searchPath,
		minScore:   minScore,
		topK:       topK,
		httpClient: &http.Client{Timeout: searchTimeout},
	}
}

type searchRequest struct {
	Query        string   `json:"query"`
	AllowedNames []string `json:"allowed_names,omitempty"`
	MinScore     float64  `json:"min_score"`
	TopK         int      `json:"top_k"`
}

type searchResponse struct {
	References  []Reference   `json:"references"`
	FilteredOut []FilteredOut `json:"filtered_out"`
}

func (p *HTTPProvider) Search(ctx *contextx.Context, query string, allowedNames []string, minScore float64, topK int) ([]Reference, []FilteredOut, error) {
	if minScore == 0 {
		minScore = p.minScore
	}
	if topK == 0 {
		topK = p.topK
	}

	body, err := json.Marshal(searchRequest{
		Query:        query,
		AllowedNames: allowedNames,
		MinScore:     minScore,
		TopK:         topK,
	})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+p.searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieval call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("retrieval status %d", resp.StatusCode)
	}

	var sresp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sresp); err != nil {
		return nil, nil, fmt.Errorf("retrieval response: %w", err)
	}
	return sresp.References, sresp.FilteredOut, nil
}
