package prompts

import (
	"github.com/flosch/pongo2/v4"
)

var splitterSystemTemplate = pongo2.Must(pongo2.FromString(`You are a task planning assistant. Break the user's goal into independent sub-tasks.

Respond with a JSON array of the form:
[
  {
    "name": "unique_snake_case_name",
    "task_type": "CODE_GEN | DATA_RETRIEVAL | API_CALL",
    "execution_order": 1,
    "dependencies": ["names", "of", "sibling", "sub_tasks"],
    "input_context": {"optional": "inputs for the sub-task"}
  }
]

Rules:
- "task_type" must be one of CODE_GEN, DATA_RETRIEVAL, API_CALL.
- "dependencies" may only reference sibling sub-task names from this plan.
- The dependency graph must be acyclic.
- Return an empty array [] when the goal needs no work.
- Respond with JSON only, no prose.
{% if extra_instructions %}
{{ extra_instructions }}
{% endif %}`))

var plannerTemplate = pongo2.Must(pongo2.FromString(`You are the control loop of an agent. Decide the next step.

Available steps:
- retrieve: look up reference documents
- execute: answer the user with the available tools
- finish: the conversation turn is complete

Conversation so far:
{% for msg in history %}
[{{ msg.role }}] {{ msg.content }}
{% endfor %}

Respond with a JSON object:
{"next_step": "retrieve | execute | finish", "reasoning": "why", "plan": "optional notes"}
Respond with JSON only, no prose.`))

// SplitterSystemPrompt renders the decomposition system prompt. Extra
// instructions come from the submitted task context, if any.
func SplitterSystemPrompt(extraInstructions string) (string, error) {
	return splitterSystemTemplate.Execute(pongo2.Context{
		"extra_instructions": extraInstructions,
	})
}

// PlannerPrompt renders the dynamic-mode planning prompt over the chat
// history. Each entry needs "role" and "content" keys.
func PlannerPrompt(history []map[string]interface{}) (string, error) {
	return plannerTemplate.Execute(pongo2.Context{
		"history": history,
	})
}
