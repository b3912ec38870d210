package workflow

import (
	"fmt"
	"strings"

	"workbench/app/llm"
	"workbench/app/objects"
	"workbench/app/prompts"
	"workbench/app/states"
	"workbench/pkg/contextx"
	"workbench/pkg/log"
)

// planDecision is what the planner model returns in dynamic mode.
type planDecision struct {
	NextStep  string `json:"next_step"`
	Reasoning string `json:"reasoning"`
	Plan      string `json:"plan"`
}

// stepRetrieve fills the run context with references. With no doc_ids
// configured it is a no-op that still reports running/success. Retrieval
// errors degrade to an empty reference set, they never fail the run.
func (e *Engine) stepRetrieve(ctx *contextx.Context, actx *AgentContext, emitter *Emitter) error {
	if err := emitter.Task(ctx, string(states.StepRetrieve), TaskRunning, nil); err != nil {
		return err
	}

	if len(actx.Agent.DocIDs) == 0 {
		return emitter.Task(ctx, string(states.StepRetrieve), TaskSuccess, nil)
	}

	refs, filtered, err := e.provider.Search(ctx, actx.Query, actx.Agent.DocIDs, 0, 0)
	if err != nil {
		log.Warnf(ctx, "retrieval failed: %s", err.Error())
		if err := emitter.System(ctx, SystemWarning, fmt.Sprintf("retrieval failed: %s", err.Error())); err != nil {
			return err
		}
		refs = nil
		filtered = nil
	}
	actx.RetrievedReferences = refs
	actx.FilteredOut = filtered

	return emitter.Task(ctx, string(states.StepRetrieve), TaskSuccess, map[string]interface{}{
		"retrieved": len(refs),
		"filtered":  len(filtered),
	})
}

// stepPlan makes one planner call and returns the chosen next step.
func (e *Engine) stepPlan(ctx *contextx.Context, actx *AgentContext, emitter *Emitter) (states.StepKind, error) {
	if err := emitter.Task(ctx, string(states.StepPlan), TaskRunning, nil); err != nil {
		return "", err
	}

	history := make([]map[string]interface{}, 0, len(actx.History)+1)
	for _, msg := range actx.History {
		history = append(history, map[string]interface{}{"role": msg.Role, "content": msg.Content})
	}
	history = append(history, map[string]interface{}{"role": llm.RoleUser, "content": actx.Query})

	prompt, err := prompts.PlannerPrompt(history)
	if err != nil {
		return "", objects.NewStepError(string(states.StepPlan), err)
	}

	reply, err := e.planner.Chat(ctx, []llm.Message{llm.UserMessage(prompt)}, nil)
	if err != nil {
		return "", objects.NewStepError(string(states.StepPlan), err)
	}

	decision := &planDecision{}
	if err := prompts.ParseJSONObject(reply.Content, decision); err != nil {
		return "", objects.NewStepError(string(states.StepPlan), err)
	}

	next, err := StepDispatch(decision.NextStep)
	if err != nil {
		return "", objects.NewStepError(string(states.StepPlan), err)
	}
	switch next {
	case states.StepPlan, states.StepPersist:
		// plan re-entry is pointless and persist is engine-owned; rejected
		// here so the step reports a single terminal status
		return "", objects.NewStepError(string(states.StepPlan),
			fmt.Errorf("planner chose reserved step '%s'", next))
	}
	actx.Plan = decision.Plan

	event := TaskEvent{
		Step:   string(states.StepPlan),
		Status: TaskSuccess,
		Output: map[string]interface{}{"next_step": decision.NextStep, "reasoning": decision.Reasoning},
		Plan:   decision.Plan,
	}
	if err := emitter.Emit(ctx, event); err != nil {
		return "", err
	}
	return next, nil
}

// stepExecute answers the user through the tool loop and streams the result
// as content/reasoning chunks.
func (e *Engine) stepExecute(ctx *contextx.Context, actx *AgentContext, emitter *Emitter) error {
	if err := emitter.Task(ctx, string(states.StepExecute), TaskRunning, nil); err != nil {
		return err
	}

	registry := e.registry
	if len(actx.Agent.Tools) > 0 {
		registry = e.registry.Subset(actx.Agent.Tools)
	}

	messages := []llm.Message{llm.SystemMessage(e.systemPrompt(actx))}
	messages = append(messages, actx.History...)
	messages = append(messages, llm.UserMessage(actx.Query))

	result, err := llm.RunToolLoop(ctx, e.client, messages, registry.Schemas(), registry.HandlerMap())
	if err != nil {
		return objects.NewStepError(string(states.StepExecute), err)
	}

	actx.FinalContent = result.FinalMessage.Content
	actx.FinalReasoning = result.FinalMessage.ReasoningContent
	actx.ToolTranscript = result.Messages

	if actx.FinalReasoning != "" {
		chunk := map[string]interface{}{"type": "reasoning", "content": actx.FinalReasoning}
		if err := emitter.Task(ctx, string(states.StepExecute), TaskRunning, chunk); err != nil {
			return err
		}
	}
	chunk := map[string]interface{}{"type": "content", "content": actx.FinalContent}
	if err := emitter.Task(ctx, string(states.StepExecute), TaskRunning, chunk); err != nil {
		return err
	}

	return emitter.Task(ctx, string(states.StepExecute), TaskSuccess, nil)
}

// stepPersist writes the turn to the chat store. It runs exactly once per
// run, even after failures, so the session history stays consistent.
func (e *Engine) stepPersist(ctx *contextx.Context, actx *AgentContext, emitter *Emitter) error {
	if err := emitter.Task(ctx, string(states.StepPersist), TaskRunning, nil); err != nil {
		return err
	}

	userMsg := objects.NewChatMessage()
	userMsg.SessionID = actx.SessionID
	userMsg.Role = llm.RoleUser
	userMsg.Content = actx.Query
	if err := userMsg.Save(ctx); err != nil {
		return objects.NewStepError(string(states.StepPersist), err)
	}

	assistantMsg := objects.NewChatMessage()
	assistantMsg.SessionID = actx.SessionID
	assistantMsg.Role = llm.RoleAssistant
	assistantMsg.Content = actx.FinalContent
	assistantMsg.ReasoningContent = actx.FinalReasoning
	assistantMsg.MetaData = actx.ReferencesMeta()
	if err := assistantMsg.Save(ctx); err != nil {
		return objects.NewStepError(string(states.StepPersist), err)
	}

	return emitter.Task(ctx, string(states.StepPersist), TaskSuccess, nil)
}

func (e *Engine) systemPrompt(actx *AgentContext) string {
	prompt := actx.Agent.SystemPrompt
	if prompt == "" {
		prompt = DefaultAgent().SystemPrompt
	}

	if len(actx.RetrievedReferences) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nReference documents:\n")
	for _, ref := range actx.RetrievedReferences {
		fmt.Fprintf(&b, "- %s: %s\n", ref.Title, ref.Preview)
	}
	return b.String()
}
