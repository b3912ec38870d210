package engine

import (
	"time"

	"workbench/app/objects"
	"workbench/app/states"
	"workbench/pkg/contextx"
	"workbench/pkg/log"
)

// Sweeper reclaims sub-tasks whose worker stopped heartbeating, so a crashed
// worker never wedges a task forever.
type Sweeper struct {
	scheduler  *Scheduler
	maxRetries int
	threshold  time.Duration
	interval   time.Duration
}

func NewSweeper(scheduler *Scheduler, maxRetries int, threshold, interval time.Duration) *Sweeper {
	return &Sweeper{
		scheduler:  scheduler,
		maxRetries: maxRetries,
		threshold:  threshold,
		interval:   interval,
	}
}

// Run sweeps periodically until ctx is cancelled.
func (s *Sweeper) Run(ctx *contextx.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				log.Errorf(ctx, "liveness sweep failed: %s", err.Error())
			}
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce reclaims sub-tasks stuck in a non-terminal state: RUNNING rows
// whose heartbeat went stale, and QUEUED rows whose queue item never arrived
// at a worker (lost delivery, or an in-process queue emptied by a restart).
// Reclaimed rows go back to PENDING (or FAILED at the retry budget) and their
// parents are rescheduled, which puts them on the queue again.
func (s *Sweeper) SweepOnce(ctx *contextx.Context) error {
	cutoff := time.Now().UTC().Add(-s.threshold)
	parents := map[string]bool{}

	stale, err := objects.QueryStaleRunningSubTasks(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, sub := range stale {
		claimed, err := s.reclaim(ctx, sub)
		if err != nil {
			log.Errorf(ctx, "reclaim of %s failed: %s", sub.ID, err.Error())
			continue
		}
		if claimed {
			parents[sub.ParentID] = true
		}
	}

	lost, err := objects.QueryStaleQueuedSubTasks(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, sub := range lost {
		claimed, err := sub.TransitionStatus(ctx, states.SubTaskQueued, states.SubTaskPending)
		if err != nil {
			log.Errorf(ctx, "requeue of %s failed: %s", sub.ID, err.Error())
			continue
		}
		if !claimed {
			// a worker claimed it after the scan, leave it alone
			continue
		}
		log.Warnf(ctx, "sub-task %s sat QUEUED past the threshold, returned to PENDING", sub.ID)
		parents[sub.ParentID] = true
	}

	for parentID := range parents {
		if err := s.scheduler.CheckReady(ctx, parentID); err != nil {
			log.Errorf(ctx, "reschedule of task %s failed: %s", parentID, err.Error())
		}
	}
	return nil
}

// reclaim moves one stale RUNNING sub-task to PENDING, or FAILED once the
// retry budget is spent. The retry increment happens only after the claim
// succeeds, so a worker that finished in the window keeps a clean row.
func (s *Sweeper) reclaim(ctx *contextx.Context, sub *objects.SubTask) (bool, error) {
	target := states.SubTaskPending
	if sub.RetryCount+1 >= s.maxRetries {
		target = states.SubTaskFailed
	}

	claimed, err := sub.TransitionStatus(ctx, states.SubTaskRunning, target)
	if err != nil {
		return false, err
	}
	if !claimed {
		// the worker finished in the meantime, leave it alone
		return false, nil
	}

	if err := sub.IncrementRetry(ctx); err != nil {
		log.Errorf(ctx, "increment retry of %s failed: %s", sub.ID, err.Error())
	}
	log.Warnf(ctx, "sub-task %s lost its worker (heartbeat stale), moved to %s", sub.ID, target)
	return true, nil
}
