package executor

import (
	"fmt"
	"time"

	"workbench/app/db/models"
	"workbench/app/engine"
	"workbench/app/mq"
	"workbench/app/objects"
	"workbench/app/states"
	"workbench/pkg/contextx"
	"workbench/pkg/log"

	"github.com/google/uuid"
)

const heartbeatInterval = 30 * time.Second

// Worker pops queue items, claims the matching sub-task row and executes it.
// The database claim is the authority: a duplicate delivery whose claim loses
// is dropped without side effects.
type Worker struct {
	ID         string
	queue      mq.Queue
	runners    *RunnerSet
	scheduler  *engine.Scheduler
	maxRetries int
	popTimeout int
}

func NewWorker(queue mq.Queue, runners *RunnerSet, scheduler *engine.Scheduler, maxRetries int, popTimeout time.Duration) *Worker {
	return &Worker{
		ID:         uuid.NewString(),
		queue:      queue,
		runners:    runners,
		scheduler:  scheduler,
		maxRetries: maxRetries,
		popTimeout: int(popTimeout.Seconds()),
	}
}

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx *contextx.Context) error {
	log.Infof(ctx, "worker %s started", w.ID)
	for {
		select {
		case <-ctx.Done():
			log.Infof(ctx, "worker %s stopping", w.ID)
			return nil
		default:
		}

		item, err := w.queue.Pop(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf(ctx, "worker %s pop failed: %s", w.ID, err.Error())
			time.Sleep(time.Second)
			continue
		}
		if item == nil {
			continue
		}

		if err := w.Process(ctx, item); err != nil {
			log.Errorf(ctx, "worker %s process %s failed: %s", w.ID, item.SubTaskID, err.Error())
		}
	}
}

// Process handles one queue item end to end.
func (w *Worker) Process(ctx *contextx.Context, item *mq.Item) error {
	sub, err := objects.QuerySubTaskByID(ctx, item.SubTaskID)
	if err != nil {
		if objects.IsNotFoundError(err) {
			log.Warnf(ctx, "queue item for unknown sub-task %s dropped", item.SubTaskID)
			return nil
		}
		return err
	}

	sub.WorkerID = w.ID
	claimed, err := sub.TransitionStatus(ctx, states.SubTaskQueued, states.SubTaskRunning)
	if err != nil {
		return err
	}
	if !claimed {
		// duplicate delivery or a cancelled task, nothing to do
		log.Debugf(ctx, "claim of sub-task %s lost, dropping item", sub.ID)
		return nil
	}

	runner, ok := w.runners.Get(states.TaskType(sub.TaskType))
	if !ok {
		return w.fail(ctx, sub, nil, time.Now().UTC(), fmt.Errorf("no runner for task type '%s'", sub.TaskType))
	}

	stopHeartbeat := w.startHeartbeat(ctx, sub)
	defer stopHeartbeat()

	started := time.Now().UTC()
	description, _ := sub.InputContext["description"].(string)
	result, runErr := runner.Run(ctx, RunInput{
		SubTaskID:    sub.ID,
		Name:         sub.Name,
		Description:  description,
		InputContext: sub.InputContext,
	})
	stopHeartbeat()

	if runErr != nil {
		return w.fail(ctx, sub, result, started, runErr)
	}
	return w.complete(ctx, sub, result, started)
}

func (w *Worker) startHeartbeat(ctx *contextx.Context, sub *objects.SubTask) func() {
	done := make(chan struct{})
	stopped := false
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sub.Heartbeat(ctx); err != nil {
					log.Warnf(ctx, "heartbeat of %s failed: %s", sub.ID, err.Error())
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		if !stopped {
			stopped = true
			close(done)
		}
	}
}

func (w *Worker) complete(ctx *contextx.Context, sub *objects.SubTask, result *RunResult, started time.Time) error {
	claimed, err := sub.TransitionStatus(ctx, states.SubTaskRunning, states.SubTaskCompleted)
	if err != nil {
		return err
	}
	if !claimed {
		// the sweeper took the row back, its rerun will settle the state
		log.Warnf(ctx, "completion of %s rejected, row no longer RUNNING", sub.ID)
		return nil
	}

	// only the attempt that won the terminal claim writes the output
	sub.OutputResult = result.Output
	if err := sub.Update(ctx, "OutputResult"); err != nil {
		return err
	}

	w.appendLog(ctx, sub, result, started, nil)
	log.Infof(ctx, "sub-task %s (%s) completed", sub.ID, sub.Name)
	return w.scheduler.CheckReady(ctx, sub.ParentID)
}

func (w *Worker) fail(ctx *contextx.Context, sub *objects.SubTask, result *RunResult, started time.Time, runErr error) error {
	log.Warnf(ctx, "sub-task %s (%s) failed: %s", sub.ID, sub.Name, runErr.Error())

	if err := sub.IncrementRetry(ctx); err != nil {
		return err
	}

	target := states.SubTaskPending
	if sub.RetryCount >= w.maxRetries {
		target = states.SubTaskFailed
	}

	sub.StateInfo = runErr.Error()
	if err := sub.Update(ctx, "StateInfo"); err != nil {
		return err
	}

	claimed, err := sub.TransitionStatus(ctx, states.SubTaskRunning, target)
	if err != nil {
		return err
	}
	if !claimed {
		log.Warnf(ctx, "failure transition of %s rejected, row no longer RUNNING", sub.ID)
		return nil
	}

	w.appendLog(ctx, sub, result, started, runErr)
	return w.scheduler.CheckReady(ctx, sub.ParentID)
}

func (w *Worker) appendLog(ctx *contextx.Context, sub *objects.SubTask, result *RunResult, started time.Time, runErr error) {
	finished := time.Now().UTC()
	entry := &models.ExecutionLog{
		SubTaskID:  sub.ID,
		TaskID:     sub.ParentID,
		Status:     sub.Status,
		DurationMS: finished.Sub(started).Milliseconds(),
		StartTime:  started,
		EndTime:    finished,
	}
	if result != nil {
		entry.Stdout = result.Stdout
		entry.Stderr = result.Stderr
		entry.TokensUsed = result.TokensUsed
	}
	if runErr != nil {
		entry.ErrorMessage = runErr.Error()
	}
	objects.AppendExecutionLog(ctx, entry)
}
