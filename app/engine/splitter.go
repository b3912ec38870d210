package engine

import (
	"workbench/app/llm"
	"workbench/app/objects"
	"workbench/app/prompts"
	"workbench/app/states"
	"workbench/pkg/contextx"
	"workbench/pkg/log"
)

// SubTaskSpec is one planned sub-task as returned by the decomposition model.
type SubTaskSpec struct {
	Name           string                 `json:"name"`
	TaskType       string                 `json:"task_type"`
	ExecutionOrder int                    `json:"execution_order"`
	Dependencies   []string               `json:"dependencies"`
	InputContext   map[string]interface{} `json:"input_context"`
}

type Splitter struct {
	client llm.Client
}

func NewSplitter(client llm.Client) *Splitter {
	return &Splitter{client: client}
}

// Split makes exactly one model call to decompose the prompt and validates
// the returned plan. An empty plan is legal and means the goal needs no work.
func (s *Splitter) Split(ctx *contextx.Context, prompt string) ([]SubTaskSpec, error) {
	systemPrompt, err := prompts.SplitterSystemPrompt("")
	if err != nil {
		return nil, err
	}

	reply, err := s.client.Chat(ctx, []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(prompt),
	}, nil)
	if err != nil {
		return nil, objects.NewSplitError("model call failed: %s", err.Error())
	}

	var specs []SubTaskSpec
	if err := prompts.ParseJSONArray(reply.Content, &specs); err != nil {
		log.Warnf(ctx, "split output was not valid JSON: %s", err.Error())
		return nil, objects.NewSplitError("invalid JSON: %s", err.Error())
	}

	if err := validateSpecs(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

func validateSpecs(specs []SubTaskSpec) error {
	names := map[string]bool{}
	for _, spec := range specs {
		if spec.Name == "" {
			return objects.NewSplitError("sub-task without a name")
		}
		if spec.TaskType == "" {
			return objects.NewSplitError("sub-task '%s' has no task_type", spec.Name)
		}
		if !states.ValidTaskType(states.TaskType(spec.TaskType)) {
			return objects.NewSplitError("sub-task '%s' has unknown task_type '%s'", spec.Name, spec.TaskType)
		}
		if names[spec.Name] {
			return objects.NewSplitError("duplicate sub-task name '%s'", spec.Name)
		}
		names[spec.Name] = true
	}

	for _, spec := range specs {
		for _, dep := range spec.Dependencies {
			if !names[dep] {
				return objects.NewSplitError("sub-task '%s' depends on unknown sibling '%s'", spec.Name, dep)
			}
		}
	}

	return checkAcyclic(specs)
}

// checkAcyclic runs Kahn's algorithm over the dependency graph.
func checkAcyclic(specs []SubTaskSpec) error {
	indegree := map[string]int{}
	dependents := map[string][]string{}
	for _, spec := range specs {
		indegree[spec.Name] = len(spec.Dependencies)
		for _, dep := range spec.Dependencies {
			dependents[dep] = append(dependents[dep], spec.Name)
		}
	}

	var queue []string
	for name, deg := range indegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if visited != len(specs) {
		return objects.NewSplitError("dependency cycle detected")
	}
	return nil
}
