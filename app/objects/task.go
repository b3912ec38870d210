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

type ExecutionTask struct {
	*models.ExecutionTask
	ContextObject
	PersistentObject
}

func (t *ExecutionTask) Save(ctx *contextx.Context) error {
	if !t.IsCreated() {
		t.CreatedAt = time.Now().UTC()
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Status == "" {
			t.Status = string(states.TaskPending)
		}
		t.UpdatedAt = t.CreatedAt
	} else {
		t.UpdatedAt = time.Now().UTC()
	}

	dbTx := t.GetDB(ctx)
	if err := dbTx.Save(t.ExecutionTask).Error; err != nil {
		return err
	}
	t.SetContext(ctx)
	t.SetCreated()
	return nil
}

func (t *ExecutionTask) Update(ctx *contextx.Context, fields ...string) error {
	t.UpdatedAt = time.Now().UTC()
	fields = append(fields, "UpdatedAt")

	dbTx := t.GetDB(ctx)
	err := dbTx.Model(&models.ExecutionTask{}).
		Select(fields).
		Where("id = ?", t.ID).
		Updates(t.ExecutionTask).Error
	if err != nil {
		log.Errorf(ctx, "Save data error: %v", err.Error())
		return err
	}
	return nil
}

// TransitionStatus moves the task from expected status to the target only if
// no one else changed it first.
func (t *ExecutionTask) TransitionStatus(ctx *contextx.Context, from, to states.TaskStatus) error {
	now := time.Now().UTC()
	values := map[string]interface{}{
		"status":     string(to),
		"updated_at": now,
	}
	if to.Terminal() {
		values["finished_at"] = now
	}

	dbTx := t.GetDB(ctx)
	result := dbTx.Model(&models.ExecutionTask{}).
		Where("id = ? AND status = ?", t.ID, string(from)).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &TransitionError{ID: t.ID, From: string(from), To: string(to)}
	}

	t.Status = string(to)
	t.UpdatedAt = now
	if to.Terminal() {
		t.FinishedAt = now
	}
	return nil
}

func (t *ExecutionTask) Delete(ctx *contextx.Context) error {
	if !t.IsCreated() {
		return fmt.Errorf("object %s isn't a persistent object, can't delete it", t.ID)
	}

	t.Deleted = 1
	t.DeletedAt = time.Now().UTC()
	return t.Update(ctx, "Deleted", "DeletedAt")
}

func (t *ExecutionTask) GetSubTasks() ([]*SubTask, error) {
	return QuerySubTasksByParentID(t.GetContext(), t.ID)
}

func NewExecutionTask() *ExecutionTask {
	return &ExecutionTask{
		ExecutionTask: &models.ExecutionTask{},
	}
}

func NewExecutionTaskFromDB(ctx *contextx.Context, mod *models.ExecutionTask) *ExecutionTask {
	if mod == nil {
		return nil
	}
	task := &ExecutionTask{
		ExecutionTask: mod,
	}
	task.SetContext(ctx)
	task.SetCreated()
	return task
}

func QueryExecutionTaskByID(ctx *contextx.Context, id string) (*ExecutionTask, error) {
	mod := &models.ExecutionTask{}
	err := GetDB(ctx).Where("id = ? AND deleted = 0", id).First(mod).Error
	if err != nil {
		return nil, err
	}
	return NewExecutionTaskFromDB(ctx, mod), nil
}

func QueryExecutionTasksByStatus(ctx *contextx.Context, status states.TaskStatus) ([]*ExecutionTask, error) {
	var mods []*models.ExecutionTask
	err := GetDB(ctx).
		Where("status = ? AND deleted = 0", string(status)).
		Order("created_at").
		Find(&mods).Error
	if err != nil {
		return nil, err
	}

	var tasks []*ExecutionTask
	for _, mod := range mods {
		tasks = append(tasks, NewExecutionTaskFromDB(ctx, mod))
	}
	return tasks, nil
}
