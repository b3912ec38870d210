package config

import "github.com/go-ini/ini"

type AgentsConfig struct {
	// DefinitionsDir holds one YAML file per agent definition.
	DefinitionsDir string `json:"definitions_dir"`
	// SandboxURL is the code-execution collaborator for CODE_GEN sub-tasks.
	SandboxURL string `json:"sandbox_url"`
}

func NewAgentsConfig(c *ini.Section) AgentsConfig {
	dir := envOr("AGENT_DEFINITIONS_DIR", c.Key("definitions_dir").String())
	if dir == "" {
		dir = "config/agents"
	}
	sandbox := envOr("SANDBOX_URL", c.Key("sandbox_url").String())
	return AgentsConfig{
		DefinitionsDir: dir,
		SandboxURL:     sandbox,
	}
}
