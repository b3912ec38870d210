package engine

import (
	"workbench/app/objects"
	"workbench/app/states"
	"workbench/pkg/contextx"
	"workbench/pkg/log"

	"github.com/google/uuid"
)

// Engine owns the front half of the task lifecycle: accept a goal, decompose
// it, persist the plan and hand it to the scheduler.
type Engine struct {
	splitter  *Splitter
	scheduler *Scheduler
}

func NewEngine(splitter *Splitter, scheduler *Scheduler) *Engine {
	return &Engine{
		splitter:  splitter,
		scheduler: scheduler,
	}
}

// Submit runs the full submission flow: persist the task as PENDING, move it
// through SPLITTING, store the plan and let the scheduler enqueue whatever is
// ready. A split failure marks the task FAILED and persists no sub-tasks. An
// empty plan completes the task immediately.
func (e *Engine) Submit(ctx *contextx.Context, prompt string, taskCtx map[string]interface{}) (*objects.ExecutionTask, error) {
	task := objects.NewExecutionTask()
	task.ID = uuid.NewString()
	task.UserID = ctx.GetUserID()
	task.OriginalPrompt = prompt
	task.Context = taskCtx
	if err := task.Save(ctx); err != nil {
		return nil, err
	}

	if err := task.TransitionStatus(ctx, states.TaskPending, states.TaskSplitting); err != nil {
		return nil, err
	}

	specs, err := e.splitter.Split(ctx, prompt)
	if err != nil {
		task.StateInfo = err.Error()
		_ = task.Update(ctx, "StateInfo")
		if terr := task.TransitionStatus(ctx, states.TaskSplitting, states.TaskFailed); terr != nil {
			log.Errorf(ctx, "mark task %s failed: %s", task.ID, terr.Error())
		}
		return task, err
	}

	if len(specs) == 0 {
		if err := task.TransitionStatus(ctx, states.TaskSplitting, states.TaskCompleted); err != nil {
			return nil, err
		}
		log.Infof(ctx, "task %s needed no sub-tasks, completed on submit", task.ID)
		return task, nil
	}

	for _, spec := range specs {
		sub := objects.NewSubTask()
		sub.ParentID = task.ID
		sub.Name = spec.Name
		sub.TaskType = spec.TaskType
		sub.ExecutionOrder = spec.ExecutionOrder
		sub.Dependencies = spec.Dependencies
		sub.InputContext = spec.InputContext
		if err := sub.Save(ctx); err != nil {
			return nil, err
		}
	}

	if err := task.TransitionStatus(ctx, states.TaskSplitting, states.TaskReady); err != nil {
		return nil, err
	}

	if err := e.scheduler.CheckReady(ctx, task.ID); err != nil {
		log.Errorf(ctx, "initial schedule of task %s failed: %s", task.ID, err.Error())
		return nil, err
	}
	return task, nil
}
