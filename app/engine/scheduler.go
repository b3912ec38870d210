package engine

import (
	"fmt"

	"workbench/app/mq"
	"workbench/app/objects"
	"workbench/app/states"
	"workbench/pkg/contextx"
	"workbench/pkg/log"
)

// Scheduler moves dependency-satisfied sub-tasks onto the work queue and
// settles the parent task once every sub-task is terminal.
type Scheduler struct {
	queue      mq.Queue
	maxRetries int
}

func NewScheduler(queue mq.Queue, maxRetries int) *Scheduler {
	return &Scheduler{queue: queue, maxRetries: maxRetries}
}

// CheckReady scans the parent's sub-tasks once. It is idempotent and safe to
// call from concurrent workers: every enqueue is guarded by the conditional
// PENDING -> QUEUED transition, so a sub-task is only pushed by the caller
// that won the claim.
func (s *Scheduler) CheckReady(ctx *contextx.Context, parentID string) error {
	subs, err := objects.QuerySubTasksByParentID(ctx, parentID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	statusByName := map[string]states.SubTaskStatus{}
	for _, sub := range subs {
		statusByName[sub.Name] = states.SubTaskStatus(sub.Status)
	}

	completed := 0
	for _, sub := range subs {
		status := states.SubTaskStatus(sub.Status)

		if status == states.SubTaskCompleted {
			completed++
			continue
		}

		if status == states.SubTaskFailed && sub.RetryCount >= s.maxRetries {
			return s.failParent(ctx, parentID, fmt.Sprintf("sub-task '%s' failed after %d retries", sub.Name, sub.RetryCount))
		}

		if status != states.SubTaskPending {
			continue
		}
		if !dependenciesDone(sub.Dependencies, statusByName) {
			continue
		}

		claimed, err := sub.TransitionStatus(ctx, states.SubTaskPending, states.SubTaskQueued)
		if err != nil {
			return err
		}
		if !claimed {
			// another scan got there first
			continue
		}

		item := &mq.Item{
			SubTaskID:    sub.ID,
			ParentTaskID: sub.ParentID,
			TaskType:     sub.TaskType,
			Name:         sub.Name,
			InputContext: sub.InputContext,
		}
		if err := s.queue.Push(ctx, item); err != nil {
			log.Errorf(ctx, "push sub-task %s failed: %s", sub.ID, err.Error())
			// roll the claim back so a later scan can retry the push
			if _, backErr := sub.TransitionStatus(ctx, states.SubTaskQueued, states.SubTaskPending); backErr != nil {
				return backErr
			}
			return err
		}
		log.Debugf(ctx, "sub-task %s (%s) queued", sub.ID, sub.Name)
	}

	if completed == len(subs) {
		task := objects.NewExecutionTask()
		task.ID = parentID
		task.SetCreated()
		task.SetContext(ctx)
		if err := task.TransitionStatus(ctx, states.TaskReady, states.TaskCompleted); err != nil {
			if objects.IsTransitionError(err) {
				// already settled by a concurrent scan
				return nil
			}
			return err
		}
		log.Infof(ctx, "task %s completed", parentID)
	}
	return nil
}

// RecoverReadyTasks rescans every READY task. The coordinator runs this once
// on boot so in-flight tasks survive a restart that emptied an in-process
// queue: any sub-task still PENDING with its dependencies done gets enqueued
// again.
func (s *Scheduler) RecoverReadyTasks(ctx *contextx.Context) error {
	tasks, err := objects.QueryExecutionTasksByStatus(ctx, states.TaskReady)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if err := s.CheckReady(ctx, task.ID); err != nil {
			log.Errorf(ctx, "recovery scan of task %s failed: %s", task.ID, err.Error())
		}
	}
	if len(tasks) > 0 {
		log.Infof(ctx, "recovery scan covered %d ready tasks", len(tasks))
	}
	return nil
}

func (s *Scheduler) failParent(ctx *contextx.Context, parentID, reason string) error {
	task, err := objects.QueryExecutionTaskByID(ctx, parentID)
	if err != nil {
		return err
	}
	if states.TaskStatus(task.Status).Terminal() {
		return nil
	}

	task.StateInfo = reason
	if err := task.Update(ctx, "StateInfo"); err != nil {
		return err
	}
	if err := task.TransitionStatus(ctx, states.TaskStatus(task.Status), states.TaskFailed); err != nil {
		if objects.IsTransitionError(err) {
			return nil
		}
		return err
	}
	log.Warnf(ctx, "task %s failed: %s", parentID, reason)
	return nil
}

func dependenciesDone(deps []string, statusByName map[string]states.SubTaskStatus) bool {
	for _, dep := range deps {
		if statusByName[dep] != states.SubTaskCompleted {
			return false
		}
	}
	return true
}
