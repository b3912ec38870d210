package objects

import (
	"time"

	"workbench/app/db/models"
	"workbench/pkg/contextx"
	"workbench/pkg/log"
)

// AppendExecutionLog records one execution attempt. Logging failures are
// reported but never block the worker path.
func AppendExecutionLog(ctx *contextx.Context, entry *models.ExecutionLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := GetDB(ctx).Create(entry).Error; err != nil {
		log.Warnf(ctx, "append execution log failed: %s", err.Error())
	}
}

func QueryExecutionLogsBySubTaskID(ctx *contextx.Context, subTaskID string) ([]*models.ExecutionLog, error) {
	var logs []*models.ExecutionLog
	err := GetDB(ctx).
		Where("sub_task_id = ?", subTaskID).
		Order("id").
		Find(&logs).Error
	return logs, err
}

func QueryExecutionLogsByTaskID(ctx *contextx.Context, taskID string) ([]*models.ExecutionLog, error) {
	var logs []*models.ExecutionLog
	err := GetDB(ctx).
		Where("task_id = ?", taskID).
		Order("id").
		Find(&logs).Error
	return logs, err
}
