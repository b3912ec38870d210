package llm

import (
	"workbench/app/config"
)

// NewClient builds the configured chat client. Only OpenAI-compatible
// backends are supported today; the indirection keeps call sites on the
// Client interface.
func NewClient(cfg config.LLMConfig) Client {
	return NewOpenAIClient(cfg)
}

// NewPlannerClient returns a client pinned to the planner model, which may
// differ from the worker model.
func NewPlannerClient(cfg config.LLMConfig) Client {
	plannerCfg := cfg
	plannerCfg.Model = cfg.PlannerModel
	return NewOpenAIClient(plannerCfg)
}
