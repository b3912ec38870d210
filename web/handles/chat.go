package handles

import (
	"encoding/json"
	"net/http"
	"strings"

	"workbench/app/llm"
	"workbench/app/objects"
	"workbench/app/workflow"
	"workbench/pkg/log"

	"github.com/julienschmidt/httprouter"
)

type chatRequest struct {
	Content string `json:"content"`
}

// Chat handles POST /v1/sessions/:id/chat. It runs the agent workflow and
// streams its events as SSE frames, ending with a single [DONE] terminator.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := newRequestContext(w, r)

	sess, err := objects.QueryChatSessionByID(ctx, ps.ByName("id"))
	if err != nil {
		if objects.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	req := &chatRequest{}
	if err := decodeBody(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	agent := h.Agents[sess.AgentName]
	if agent == nil {
		agent = workflow.DefaultAgent()
	}

	msgs, err := sess.GetMessages()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role != llm.RoleUser && msg.Role != llm.RoleAssistant {
			continue
		}
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	ctx.Set("sessionId", sess.ID)
	actx := workflow.NewAgentContext(sess.ID, sess.UserID, req.Content, agent, history)
	emitter := h.Workflow.Run(ctx, actx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range emitter.Events() {
		data, err := json.Marshal(event)
		if err != nil {
			log.Errorf(ctx, "marshal event failed: %s", err.Error())
			continue
		}
		if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			// client went away; keep draining so the producer can finish
			log.Debugf(ctx, "client disconnected: %s", err.Error())
			continue
		}
		flusher.Flush()
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}
