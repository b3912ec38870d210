package config

import "github.com/go-ini/ini"

type WorkflowConfig struct {
	// Mode is "static" or "dynamic".
	Mode          string `json:"mode"`
	MaxIterations int    `json:"max_iterations"`
	EventBuffer   int    `json:"event_buffer"`
}

func NewDefaultWorkflowConfig(c *ini.Section) WorkflowConfig {
	mode := envOr("WORKFLOW_MODE", c.Key("mode").String())
	if mode == "" {
		mode = "static"
	}
	maxIter, _ := c.Key("max_iterations").Int()
	if maxIter == 0 {
		maxIter = 10
	}
	buffer, _ := c.Key("event_buffer").Int()
	if buffer == 0 {
		buffer = 64
	}
	return WorkflowConfig{
		Mode:          mode,
		MaxIterations: maxIter,
		EventBuffer:   buffer,
	}
}
