package config

import "github.com/go-ini/ini"

type RetrievalConfig struct {
	// Backend is one of "local", "vector", "graph".
	Backend  string  `json:"backend"`
	Endpoint string  `json:"endpoint"`
	MinScore float64 `json:"min_score"`
	TopK     int     `json:"top_k"`
}

func NewRetrievalConfig(c *ini.Section) RetrievalConfig {
	backend := envOr("RETRIEVAL_BACKEND", c.Key("backend").String())
	if backend == "" {
		backend = "local"
	}
	endpoint := c.Key("endpoint").String()
	minScore, _ := c.Key("min_score").Float64()
	if minScore == 0 {
		minScore = 0.3
	}
	topK, _ := c.Key("top_k").Int()
	if topK == 0 {
		topK = 5
	}
	return RetrievalConfig{
		Backend:  backend,
		Endpoint: endpoint,
		MinScore: minScore,
		TopK:     topK,
	}
}
