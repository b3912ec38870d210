package engine

import (
	"fmt"
	"testing"
	"time"

	"workbench/app/db"
	"workbench/app/db/models"
	"workbench/app/mq"
	"workbench/app/objects"
	"workbench/app/states"
	"workbench/pkg/contextx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	for _, mod := range models.Models {
		require.NoError(t, conn.AutoMigrate(mod))
	}
	db.SetDBConnection(conn)
}

func TestSubmit_FullFlow(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()

	client := &cannedClient{content: `[
		{"name": "fetch", "task_type": "DATA_RETRIEVAL", "execution_order": 1},
		{"name": "build", "task_type": "CODE_GEN", "execution_order": 2, "dependencies": ["fetch"]}
	]`}
	eng := NewEngine(NewSplitter(client), NewScheduler(queue, 3))

	task, err := eng.Submit(ctx, "build a report", nil)
	require.NoError(t, err)
	asserter.Equal(string(states.TaskReady), task.Status)

	// only the dependency-free sub-task is queued
	length, _ := queue.Length()
	asserter.Equal(1, length)

	item, err := queue.Pop(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, item)
	asserter.Equal("fetch", item.Name)

	subs, err := objects.QuerySubTasksByParentID(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	asserter.Equal(string(states.SubTaskQueued), subs[0].Status)
	asserter.Equal(string(states.SubTaskPending), subs[1].Status)
}

func TestSubmit_SplitFailureMarksTaskFailed(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()

	client := &cannedClient{content: `broken output`}
	eng := NewEngine(NewSplitter(client), NewScheduler(queue, 3))

	task, err := eng.Submit(ctx, "goal", nil)
	asserter.True(objects.IsSplitError(err))
	require.NotNil(t, task)

	stored, err := objects.QueryExecutionTaskByID(ctx, task.ID)
	require.NoError(t, err)
	asserter.Equal(string(states.TaskFailed), stored.Status)

	// nothing was persisted or queued
	subs, err := objects.QuerySubTasksByParentID(ctx, task.ID)
	require.NoError(t, err)
	asserter.Empty(subs)
	length, _ := queue.Length()
	asserter.Equal(0, length)
}

func TestSubmit_EmptyPlanCompletesImmediately(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()

	client := &cannedClient{content: `[]`}
	eng := NewEngine(NewSplitter(client), NewScheduler(queue, 3))

	task, err := eng.Submit(ctx, "nothing to do", nil)
	require.NoError(t, err)
	asserter.Equal(string(states.TaskCompleted), task.Status)
}

func newTestTask(t *testing.T, ctx *contextx.Context, status states.TaskStatus) *objects.ExecutionTask {
	task := objects.NewExecutionTask()
	task.OriginalPrompt = "goal"
	task.Status = string(status)
	require.NoError(t, task.Save(ctx))
	return task
}

func newTestSubTask(t *testing.T, ctx *contextx.Context, parentID, name string, status states.SubTaskStatus, deps []string, order int) *objects.SubTask {
	sub := objects.NewSubTask()
	sub.ParentID = parentID
	sub.Name = name
	sub.TaskType = string(states.TypeAPICall)
	sub.Status = string(status)
	sub.Dependencies = deps
	sub.ExecutionOrder = order
	require.NoError(t, sub.Save(ctx))
	return sub
}

func TestCheckReady_DependencyGating(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	scheduler := NewScheduler(queue, 3)

	task := newTestTask(t, ctx, states.TaskReady)
	newTestSubTask(t, ctx, task.ID, "a", states.SubTaskCompleted, nil, 1)
	newTestSubTask(t, ctx, task.ID, "b", states.SubTaskPending, []string{"a"}, 2)
	newTestSubTask(t, ctx, task.ID, "c", states.SubTaskPending, []string{"b"}, 3)

	require.NoError(t, scheduler.CheckReady(ctx, task.ID))

	// b unblocked, c still gated on b
	item, err := queue.Pop(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, item)
	asserter.Equal("b", item.Name)
	length, _ := queue.Length()
	asserter.Equal(0, length)
}

func TestCheckReady_Idempotent(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	scheduler := NewScheduler(queue, 3)

	task := newTestTask(t, ctx, states.TaskReady)
	newTestSubTask(t, ctx, task.ID, "a", states.SubTaskPending, nil, 1)

	require.NoError(t, scheduler.CheckReady(ctx, task.ID))
	require.NoError(t, scheduler.CheckReady(ctx, task.ID))

	// the second scan found the sub-task already QUEUED
	length, _ := queue.Length()
	asserter.Equal(1, length)
}

func TestCheckReady_ParentCompletion(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	scheduler := NewScheduler(queue, 3)

	task := newTestTask(t, ctx, states.TaskReady)
	newTestSubTask(t, ctx, task.ID, "a", states.SubTaskCompleted, nil, 1)
	newTestSubTask(t, ctx, task.ID, "b", states.SubTaskCompleted, nil, 2)

	require.NoError(t, scheduler.CheckReady(ctx, task.ID))

	stored, err := objects.QueryExecutionTaskByID(ctx, task.ID)
	require.NoError(t, err)
	asserter.Equal(string(states.TaskCompleted), stored.Status)
}

func TestCheckReady_FailurePropagation(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	scheduler := NewScheduler(queue, 3)

	task := newTestTask(t, ctx, states.TaskReady)
	failed := newTestSubTask(t, ctx, task.ID, "a", states.SubTaskFailed, nil, 1)
	failed.RetryCount = 3
	require.NoError(t, failed.Update(ctx, "RetryCount"))
	newTestSubTask(t, ctx, task.ID, "b", states.SubTaskPending, nil, 2)

	require.NoError(t, scheduler.CheckReady(ctx, task.ID))

	stored, err := objects.QueryExecutionTaskByID(ctx, task.ID)
	require.NoError(t, err)
	asserter.Equal(string(states.TaskFailed), stored.Status)

	// nothing more was enqueued after the failure
	length, _ := queue.Length()
	asserter.Equal(0, length)
}

func TestSweeper_ReclaimsStaleRunning(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	scheduler := NewScheduler(queue, 3)
	sweeper := NewSweeper(scheduler, 3, time.Minute, time.Minute)

	task := newTestTask(t, ctx, states.TaskReady)
	sub := newTestSubTask(t, ctx, task.ID, "a", states.SubTaskRunning, nil, 1)
	sub.LastHeartbeat = time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, sub.Update(ctx, "LastHeartbeat"))

	require.NoError(t, sweeper.SweepOnce(ctx))

	// the reclaimed sub-task went straight back onto the queue
	stored, err := objects.QuerySubTaskByID(ctx, sub.ID)
	require.NoError(t, err)
	asserter.Equal(string(states.SubTaskQueued), stored.Status)
	asserter.Equal(1, stored.RetryCount)
	length, _ := queue.Length()
	asserter.Equal(1, length)
}

func TestSweeper_RequeuesLostQueuedItem(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	scheduler := NewScheduler(queue, 3)
	sweeper := NewSweeper(scheduler, 3, time.Minute, time.Minute)

	// QUEUED row with no matching queue item, as after a broker ack whose
	// worker died before the claim, or a restart of the in-process queue
	task := newTestTask(t, ctx, states.TaskReady)
	sub := newTestSubTask(t, ctx, task.ID, "a", states.SubTaskQueued, nil, 1)
	aged := time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, objects.GetDB(ctx).Model(&models.SubTask{}).
		Where("id = ?", sub.ID).Update("updated_at", aged).Error)

	require.NoError(t, sweeper.SweepOnce(ctx))

	// the row is back on the queue, and losing a delivery costs no retry
	stored, err := objects.QuerySubTaskByID(ctx, sub.ID)
	require.NoError(t, err)
	asserter.Equal(string(states.SubTaskQueued), stored.Status)
	asserter.Equal(0, stored.RetryCount)

	item, err := queue.Pop(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, item)
	asserter.Equal(sub.ID, item.SubTaskID)
}

func TestSweeper_FreshQueuedUntouched(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	sweeper := NewSweeper(NewScheduler(queue, 3), 3, time.Minute, time.Minute)

	task := newTestTask(t, ctx, states.TaskReady)
	sub := newTestSubTask(t, ctx, task.ID, "a", states.SubTaskQueued, nil, 1)

	require.NoError(t, sweeper.SweepOnce(ctx))

	// just queued, its worker simply has not popped it yet
	stored, err := objects.QuerySubTaskByID(ctx, sub.ID)
	require.NoError(t, err)
	asserter.Equal(string(states.SubTaskQueued), stored.Status)
	length, _ := queue.Length()
	asserter.Equal(0, length)
}

func TestSweeper_LostReclaimKeepsRetryCount(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	sweeper := NewSweeper(NewScheduler(queue, 3), 3, time.Minute, time.Minute)

	task := newTestTask(t, ctx, states.TaskReady)
	sub := newTestSubTask(t, ctx, task.ID, "a", states.SubTaskRunning, nil, 1)
	sub.LastHeartbeat = time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, sub.Update(ctx, "LastHeartbeat"))

	// the sweeper's stale snapshot
	snapshot, err := objects.QuerySubTaskByID(ctx, sub.ID)
	require.NoError(t, err)

	// the worker finishes between the scan and the reclaim
	winner, err := objects.QuerySubTaskByID(ctx, sub.ID)
	require.NoError(t, err)
	claimed, err := winner.TransitionStatus(ctx, states.SubTaskRunning, states.SubTaskCompleted)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = sweeper.reclaim(ctx, snapshot)
	require.NoError(t, err)
	asserter.False(claimed)

	// the completed row keeps its clean retry count
	stored, err := objects.QuerySubTaskByID(ctx, sub.ID)
	require.NoError(t, err)
	asserter.Equal(string(states.SubTaskCompleted), stored.Status)
	asserter.Equal(0, stored.RetryCount)
}

func TestRecoverReadyTasks(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	scheduler := NewScheduler(queue, 3)

	task := newTestTask(t, ctx, states.TaskReady)
	newTestSubTask(t, ctx, task.ID, "a", states.SubTaskPending, nil, 1)
	done := newTestTask(t, ctx, states.TaskCompleted)
	newTestSubTask(t, ctx, done.ID, "b", states.SubTaskCompleted, nil, 1)

	require.NoError(t, scheduler.RecoverReadyTasks(ctx))

	// the ready task's runnable sub-task is back on an empty queue
	length, _ := queue.Length()
	asserter.Equal(1, length)
	item, err := queue.Pop(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, item)
	asserter.Equal("a", item.Name)
}

func TestSweeper_FreshHeartbeatUntouched(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	queue := mq.NewMemoryQueue()
	defer queue.Close()
	sweeper := NewSweeper(NewScheduler(queue, 3), 3, time.Minute, time.Minute)

	task := newTestTask(t, ctx, states.TaskReady)
	sub := newTestSubTask(t, ctx, task.ID, "a", states.SubTaskRunning, nil, 1)
	sub.LastHeartbeat = time.Now().UTC()
	require.NoError(t, sub.Update(ctx, "LastHeartbeat"))

	require.NoError(t, sweeper.SweepOnce(ctx))

	stored, err := objects.QuerySubTaskByID(ctx, sub.ID)
	require.NoError(t, err)
	asserter.Equal(string(states.SubTaskRunning), stored.Status)
}
