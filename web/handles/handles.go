package handles

import (
	"encoding/json"
	"fmt"
	"net/http"

	"workbench/app/engine"
	"workbench/app/workflow"
	"workbench/pkg/contextx"
	"workbench/pkg/log"

	"github.com/google/uuid"
)

// Handlers bundles the service dependencies the HTTP surface needs.
type Handlers struct {
	Engine   *engine.Engine
	Workflow *workflow.Engine
	Agents   map[string]*workflow.AgentDefinition
}

func NewHandlers(eng *engine.Engine, wf *workflow.Engine, agents map[string]*workflow.AgentDefinition) *Handlers {
	return &Handlers{
		Engine:   eng,
		Workflow: wf,
		Agents:   agents,
	}
}

type Res struct {
	Code int    `json:"code"`
	Msg  string `json:"message"`
}

// newRequestContext builds the per-request context, honoring an incoming
// request id header and stamping it on the response.
func newRequestContext(w http.ResponseWriter, r *http.Request) *contextx.Context {
	ctx := contextx.WithParent(r.Context())

	requestId := r.Header.Get("X-Request-Id")
	if requestId == "" {
		requestId = fmt.Sprintf("wb-req-%s", uuid.NewString())
	}
	ctx.Set("requestId", requestId)

	if userId := r.Header.Get("X-User-Id"); userId != "" {
		ctx.Set("userId", userId)
	}

	w.Header().Set("X-Request-Id", requestId)
	return ctx
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf(nil, "write response failed: %s", err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, Res{Code: code, Msg: msg})
}

func decodeBody(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
