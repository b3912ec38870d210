package objects

import (
	"fmt"
	"time"

	"workbench/app/db/models"
	"workbench/app/states"
	"workbench/pkg/contextx"
	"workbench/pkg/log"

	"github.com/google/uuid"
)

type SubTask struct {
	*models.SubTask
	ContextObject
	PersistentObject
}

func (s *SubTask) Save(ctx *contextx.Context) error {
	if !s.IsCreated() {
		s.CreatedAt = time.Now().UTC()
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.Status == "" {
			s.Status = string(states.SubTaskPending)
		}
		s.UpdatedAt = s.CreatedAt
	} else {
		s.UpdatedAt = time.Now().UTC()
	}

	dbTx := s.GetDB(ctx)
	if err := dbTx.Save(s.SubTask).Error; err != nil {
		return err
	}
	s.SetContext(ctx)
	s.SetCreated()
	return nil
}

func (s *SubTask) Update(ctx *contextx.Context, fields ...string) error {
	s.UpdatedAt = time.Now().UTC()
	fields = append(fields, "UpdatedAt")

	dbTx := s.GetDB(ctx)
	err := dbTx.Model(&models.SubTask{}).
		Select(fields).
		Where("id = ?", s.ID).
		Updates(s.SubTask).Error
	if err != nil {
		log.Errorf(ctx, "Save data error: %v", err.Error())
		return err
	}
	return nil
}

// TransitionStatus performs a conditional update guarded on the expected
// current status. It reports whether this caller won the transition, so
// concurrent workers popping a duplicated queue item cannot both claim the
// same sub-task.
func (s *SubTask) TransitionStatus(ctx *contextx.Context, from, to states.SubTaskStatus) (bool, error) {
	now := time.Now().UTC()
	values := map[string]interface{}{
		"status":     string(to),
		"updated_at": now,
	}
	if to == states.SubTaskRunning {
		values["start_time"] = now
		values["last_heartbeat"] = now
		values["worker_id"] = s.WorkerID
	}
	if to.Terminal() {
		values["end_time"] = now
	}

	dbTx := s.GetDB(ctx)
	result := dbTx.Model(&models.SubTask{}).
		Where("id = ? AND status = ?", s.ID, string(from)).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	s.Status = string(to)
	s.UpdatedAt = now
	if to == states.SubTaskRunning {
		s.StartTime = now
		s.LastHeartbeat = now
	}
	if to.Terminal() {
		s.EndTime = now
	}
	return true, nil
}

// Heartbeat refreshes the liveness timestamp while the sub-task is RUNNING.
func (s *SubTask) Heartbeat(ctx *contextx.Context) error {
	now := time.Now().UTC()
	dbTx := s.GetDB(ctx)
	err := dbTx.Model(&models.SubTask{}).
		Where("id = ? AND status = ?", s.ID, string(states.SubTaskRunning)).
		Update("last_heartbeat", now).Error
	if err != nil {
		return err
	}
	s.LastHeartbeat = now
	return nil
}

func (s *SubTask) IncrementRetry(ctx *contextx.Context) error {
	s.RetryCount++
	return s.Update(ctx, "RetryCount")
}

func (s *SubTask) Delete(ctx *contextx.Context) error {
	if !s.IsCreated() {
		return fmt.Errorf("object %s isn't a persistent object, can't delete it", s.ID)
	}
	return s.GetDB(ctx).Delete(&models.SubTask{}, "id = ?", s.ID).Error
}

func NewSubTask() *SubTask {
	return &SubTask{
		SubTask: &models.SubTask{},
	}
}

func NewSubTaskFromDB(ctx *contextx.Context, mod *models.SubTask) *SubTask {
	if mod == nil {
		return nil
	}
	sub := &SubTask{
		SubTask: mod,
	}
	sub.SetContext(ctx)
	sub.SetCreated()
	return sub
}

func QuerySubTaskByID(ctx *contextx.Context, id string) (*SubTask, error) {
	mod := &models.SubTask{}
	err := GetDB(ctx).Where("id = ?", id).First(mod).Error
	if err != nil {
		return nil, err
	}
	return NewSubTaskFromDB(ctx, mod), nil
}

// QuerySubTasksByParentID returns the siblings of a parent task ordered by
// suggested execution order, with id as a stable tiebreak.
func QuerySubTasksByParentID(ctx *contextx.Context, parentID string) ([]*SubTask, error) {
	var mods []*models.SubTask
	err := GetDB(ctx).
		Where("parent_id = ?", parentID).
		Order("execution_order, id").
		Find(&mods).Error
	if err != nil {
		return nil, err
	}

	var subs []*SubTask
	for _, mod := range mods {
		subs = append(subs, NewSubTaskFromDB(ctx, mod))
	}
	return subs, nil
}

// QueryStaleRunningSubTasks finds RUNNING sub-tasks whose heartbeat is older
// than the threshold, candidates for sweep recovery.
func QueryStaleRunningSubTasks(ctx *contextx.Context, threshold time.Time) ([]*SubTask, error) {
	var mods []*models.SubTask
	err := GetDB(ctx).
		Where("status = ? AND last_heartbeat < ?", string(states.SubTaskRunning), threshold).
		Find(&mods).Error
	if err != nil {
		return nil, err
	}

	var subs []*SubTask
	for _, mod := range mods {
		subs = append(subs, NewSubTaskFromDB(ctx, mod))
	}
	return subs, nil
}

// QueryStaleQueuedSubTasks finds QUEUED sub-tasks untouched past the
// threshold. Their queue item never reached a claim (the broker acked a
// delivery whose worker died, or an in-process queue was emptied by a
// restart), so the sweeper returns them to PENDING for a fresh enqueue.
func QueryStaleQueuedSubTasks(ctx *contextx.Context, threshold time.Time) ([]*SubTask, error) {
	var mods []*models.SubTask
	err := GetDB(ctx).
		Where("status = ? AND updated_at < ?", string(states.SubTaskQueued), threshold).
		Find(&mods).Error
	if err != nil {
		return nil, err
	}

	var subs []*SubTask
	for _, mod := range mods {
		subs = append(subs, NewSubTaskFromDB(ctx, mod))
	}
	return subs, nil
}
