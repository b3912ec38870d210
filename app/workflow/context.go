package workflow

import (
	"workbench/app/llm"
	"workbench/app/retrieval"
)

// AgentContext is the mutable bag one workflow run reads and writes. It is
// owned by a single goroutine, so no locking.
type AgentContext struct {
	SessionID string
	UserID    string
	Query     string

	Agent   *AgentDefinition
	History []llm.Message

	RetrievedReferences []retrieval.Reference
	FilteredOut         []retrieval.FilteredOut

	// Plan holds the latest planner notes in dynamic mode.
	Plan      string
	Iteration int

	// FinalContent / FinalReasoning are filled by the execute step and
	// written out by persist.
	FinalContent   string
	FinalReasoning string
	ToolTranscript []llm.Message
}

func NewAgentContext(sessionID, userID, query string, agent *AgentDefinition, history []llm.Message) *AgentContext {
	return &AgentContext{
		SessionID: sessionID,
		UserID:    userID,
		Query:     query,
		Agent:     agent,
		History:   history,
	}
}

// ReferencesMeta renders the retrieval outcome for message metadata.
func (a *AgentContext) ReferencesMeta() map[string]interface{} {
	if len(a.RetrievedReferences) == 0 && len(a.FilteredOut) == 0 {
		return nil
	}

	refs := make([]interface{}, 0, len(a.RetrievedReferences))
	for _, ref := range a.RetrievedReferences {
		refs = append(refs, map[string]interface{}{
			"title":   ref.Title,
			"score":   ref.Score,
			"preview": ref.Preview,
			"url":     ref.URL,
			"page":    ref.Page,
		})
	}
	filtered := make([]interface{}, 0, len(a.FilteredOut))
	for _, f := range a.FilteredOut {
		filtered = append(filtered, map[string]interface{}{
			"title":  f.Title,
			"score":  f.Score,
			"reason": f.Reason,
		})
	}
	return map[string]interface{}{
		"retrieved_references": refs,
		"filtered_out":         filtered,
	}
}
