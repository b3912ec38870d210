package retrieval

import (
	"fmt"

	"workbench/app/config"
	"workbench/pkg/contextx"
)

// Reference is one retrieved document hit. Scores are normalized to [0,1].
type Reference struct {
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
	URL     string  `json:"url,omitempty"`
	Page    int     `json:"page,omitempty"`
}

// FilteredOut records a hit rejected by the allow-list or score threshold,
// kept for observability in the workflow output.
type FilteredOut struct {
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Provider searches a document store. allowedNames restricts results to the
// named sources when non-empty; minScore and topK of zero fall back to the
// provider defaults.
type Provider interface {
	Search(ctx *contextx.Context, query string, allowedNames []string, minScore float64, topK int) ([]Reference, []FilteredOut, error)
}

// New builds the configured backend.
func New(cfg config.RetrievalConfig) (Provider, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalProvider(cfg.MinScore, cfg.TopK), nil
	case "vector":
		return NewHTTPProvider(cfg.Endpoint, "/v1/search", cfg.MinScore, cfg.TopK), nil
	case "graph":
		return NewHTTPProvider(cfg.Endpoint, "/v1/graph/search", cfg.MinScore, cfg.TopK), nil
	default:
		return nil, fmt.Errorf("retrieval backend '%s' is not supported", cfg.Backend)
	}
}
