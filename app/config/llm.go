package config

import (
	"time"

	"github.com/go-ini/ini"
)

type LLMConfig struct {
	BaseURL        string        `json:"base_url"`
	APIKey         string        `json:"api_key"`
	Model          string        `json:"model"`
	PlannerModel   string        `json:"planner_model"`
	EnableThinking bool          `json:"enable_thinking"`
	Timeout        time.Duration `json:"timeout"`
	// RatePerSecond caps outgoing chat-completion calls per process.
	RatePerSecond float64 `json:"rate_per_second"`
}

func NewLLMConfig(c *ini.Section) LLMConfig {
	baseURL := envOr("LLM_BASE_URL", c.Key("base_url").String())
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	apiKey := envOr("LLM_API_KEY", c.Key("api_key").String())
	model := envOr("LLM_MODEL", c.Key("model").String())
	if model == "" {
		model = "gpt-4o"
	}
	plannerModel := c.Key("planner_model").String()
	if plannerModel == "" {
		plannerModel = model
	}
	enableThinking, _ := c.Key("enable_thinking").Bool()
	if envOr("LLM_ENABLE_THINKING", "") == "true" {
		enableThinking = true
	}
	timeoutSec, _ := c.Key("timeout").Int()
	if timeoutSec == 0 {
		timeoutSec = 120
	}
	rate, _ := c.Key("rate_per_second").Float64()
	if rate == 0 {
		rate = 5
	}
	return LLMConfig{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		Model:          model,
		PlannerModel:   plannerModel,
		EnableThinking: enableThinking,
		Timeout:        time.Duration(timeoutSec) * time.Second,
		RatePerSecond:  rate,
	}
}
