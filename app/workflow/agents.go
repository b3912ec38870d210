package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"workbench/app/states"
	"workbench/pkg/log"

	"gopkg.in/yaml.v2"
)

// AgentDefinition describes one configured agent, loaded from a YAML file in
// the definitions directory.
type AgentDefinition struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	SystemPrompt string `yaml:"system_prompt"`
	// Mode is "static" or "dynamic"; empty falls back to the configured
	// default.
	Mode          string   `yaml:"mode"`
	Tools         []string `yaml:"tools"`
	DocIDs        []string `yaml:"doc_ids"`
	MaxIterations int      `yaml:"max_iterations"`
}

func (d *AgentDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("agent definition has no name")
	}
	if d.Mode != "" && d.Mode != ModeStatic && d.Mode != ModeDynamic {
		return fmt.Errorf("agent '%s' has unknown mode '%s'", d.Name, d.Mode)
	}
	return nil
}

const (
	ModeStatic  = "static"
	ModeDynamic = "dynamic"
)

// LoadAgentDefinitions reads every *.yaml / *.yml file under dir. A missing
// directory yields an empty set, not an error, so fresh deployments boot.
func LoadAgentDefinitions(dir string) (map[string]*AgentDefinition, error) {
	defs := map[string]*AgentDefinition{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf(nil, "agent definitions dir %s does not exist", dir)
			return defs, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		def := &AgentDefinition{}
		if err := yaml.Unmarshal(data, def); err != nil {
			return nil, fmt.Errorf("parse agent definition %s: %w", entry.Name(), err)
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, ok := defs[def.Name]; ok {
			return nil, fmt.Errorf("duplicate agent definition '%s'", def.Name)
		}
		defs[def.Name] = def
	}
	return defs, nil
}

// DefaultAgent is used when a session names no agent. It answers with the
// full toolbox and no retrieval sources.
func DefaultAgent() *AgentDefinition {
	return &AgentDefinition{
		Name:         "default",
		SystemPrompt: "You are a helpful assistant.",
		Tools:        []string{"echo", "http_get", "http_post_json"},
	}
}

// StepDispatch maps a planner decision onto a step kind. Unknown names are
// rejected here so the engine's dispatcher stays a compile-checked switch.
func StepDispatch(name string) (states.StepKind, error) {
	kind := states.StepKind(name)
	if !states.ValidStepKind(kind) {
		return "", fmt.Errorf("unknown step '%s'", name)
	}
	return kind, nil
}
