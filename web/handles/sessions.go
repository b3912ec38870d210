package handles

import (
	"net/http"

	"workbench/app/objects"

	"github.com/julienschmidt/httprouter"
)

type createSessionRequest struct {
	Title     string                 `json:"title"`
	AgentName string                 `json:"agent_name"`
	Context   map[string]interface{} `json:"context"`
}

type sessionView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	AgentName string `json:"agent_name"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

type messageView struct {
	ID               uint                   `json:"id"`
	Role             string                 `json:"role"`
	Content          string                 `json:"content"`
	ReasoningContent string                 `json:"reasoning_content,omitempty"`
	MetaData         map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt        string                 `json:"created_at"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func sessionToView(sess *objects.ChatSession) sessionView {
	return sessionView{
		ID:        sess.ID,
		Title:     sess.Title,
		AgentName: sess.AgentName,
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt.Format(timeLayout),
	}
}

// CreateSession handles POST /v1/sessions.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := newRequestContext(w, r)

	req := &createSessionRequest{}
	if err := decodeBody(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.AgentName != "" {
		if _, ok := h.Agents[req.AgentName]; !ok {
			writeError(w, http.StatusBadRequest, "unknown agent '"+req.AgentName+"'")
			return
		}
	}

	sess := objects.NewChatSession()
	sess.Title = req.Title
	sess.AgentName = req.AgentName
	sess.UserID = ctx.GetUserID()
	sess.Context = req.Context
	if err := sess.Save(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionToView(sess))
}

// ListSessions handles GET /v1/sessions. Read-only: no workflow events.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := newRequestContext(w, r)

	sessions, err := objects.QueryChatSessionsByUserID(ctx, ctx.GetUserID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := []sessionView{}
	for _, sess := range sessions {
		views = append(views, sessionToView(sess))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

// GetSession handles GET /v1/sessions/:id, returning the session and its
// message history. Read-only: no workflow events.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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

	msgs, err := sess.GetMessages()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := []messageView{}
	for _, msg := range msgs {
		views = append(views, messageView{
			ID:               msg.ID,
			Role:             msg.Role,
			Content:          msg.Content,
			ReasoningContent: msg.ReasoningContent,
			MetaData:         msg.MetaData,
			CreatedAt:        msg.CreatedAt.Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":  sessionToView(sess),
		"messages": views,
	})
}

// DeleteSession handles DELETE /v1/sessions/:id.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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

	if err := sess.Delete(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Res{Code: http.StatusOK, Msg: "deleted"})
}
