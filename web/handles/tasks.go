package handles

import (
	"net/http"
	"strings"

	"workbench/app/objects"
	"workbench/pkg/log"

	"github.com/julienschmidt/httprouter"
)

type submitTaskRequest struct {
	Prompt  string                 `json:"prompt"`
	Context map[string]interface{} `json:"context"`
}

type subTaskView struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	TaskType       string                 `json:"task_type"`
	Status         string                 `json:"status"`
	ExecutionOrder int                    `json:"execution_order"`
	Dependencies   []string               `json:"dependencies"`
	Output         map[string]interface{} `json:"output,omitempty"`
	RetryCount     int                    `json:"retry_count"`
}

type executionLogView struct {
	SubTaskID  string `json:"sub_task_id"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	TokensUsed int    `json:"tokens_used,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type taskView struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"`
	Prompt    string             `json:"prompt"`
	StateInfo string             `json:"state_info,omitempty"`
	SubTasks  []subTaskView      `json:"sub_tasks"`
	Logs      []executionLogView `json:"logs"`
}

// SubmitTask handles POST /v1/tasks: decompose the goal and enqueue whatever
// is immediately runnable. The response carries the planned sub-tasks.
func (h *Handlers) SubmitTask(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := newRequestContext(w, r)

	req := &submitTaskRequest{}
	if err := decodeBody(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	task, err := h.Engine.Submit(ctx, req.Prompt, req.Context)
	if err != nil {
		if objects.IsSplitError(err) {
			// the task row exists in FAILED state, report it
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"id":     task.ID,
				"status": task.Status,
				"error":  err.Error(),
			})
			return
		}
		log.Errorf(ctx, "submit task failed: %s", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view, err := h.taskView(task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetTask handles GET /v1/tasks/:id.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := newRequestContext(w, r)

	task, err := objects.QueryExecutionTaskByID(ctx, ps.ByName("id"))
	if err != nil {
		if objects.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view, err := h.taskView(task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) taskView(task *objects.ExecutionTask) (*taskView, error) {
	subs, err := task.GetSubTasks()
	if err != nil {
		return nil, err
	}

	view := &taskView{
		ID:        task.ID,
		Status:    task.Status,
		Prompt:    task.OriginalPrompt,
		StateInfo: task.StateInfo,
		SubTasks:  []subTaskView{},
		Logs:      []executionLogView{},
	}
	for _, sub := range subs {
		view.SubTasks = append(view.SubTasks, subTaskView{
			ID:             sub.ID,
			Name:           sub.Name,
			TaskType:       sub.TaskType,
			Status:         sub.Status,
			ExecutionOrder: sub.ExecutionOrder,
			Dependencies:   sub.Dependencies,
			Output:         sub.OutputResult,
			RetryCount:     sub.RetryCount,
		})
	}

	entries, err := objects.QueryExecutionLogsByTaskID(task.GetContext(), task.ID)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		view.Logs = append(view.Logs, executionLogView{
			SubTaskID:  entry.SubTaskID,
			Status:     entry.Status,
			DurationMS: entry.DurationMS,
			TokensUsed: entry.TokensUsed,
			Stdout:     entry.Stdout,
			Stderr:     entry.Stderr,
			Error:      entry.ErrorMessage,
			CreatedAt:  entry.CreatedAt.Format(timeLayout),
		})
	}
	return view, nil
}
