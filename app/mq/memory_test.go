package mq

import (
	"testing"
	"time"

	"workbench/pkg/contextx"

	"github.com/stretchr/testify/assert"
)

func TestMemoryQueue_PushPop(t *testing.T) {
	asserter := assert.New(t)
	queue := NewMemoryQueue()
	defer queue.Close()

	ctx := contextx.NewContext()
	item := &Item{
		SubTaskID:    "sub-1",
		ParentTaskID: "task-1",
		TaskType:     "API_CALL",
		Name:         "fetch_data",
		InputContext: map[string]interface{}{"url": "http://example.com"},
	}
	asserter.NoError(queue.Push(ctx, item))

	length, err := queue.Length()
	asserter.NoError(err)
	asserter.Equal(1, length)

	popped, err := queue.Pop(ctx, 1)
	asserter.NoError(err)
	if asserter.NotNil(popped) {
		asserter.Equal("sub-1", popped.SubTaskID)
		asserter.Equal("fetch_data", popped.Name)
	}
}

func TestMemoryQueue_PopTimeout(t *testing.T) {
	asserter := assert.New(t)
	queue := NewMemoryQueue()
	defer queue.Close()

	start := time.Now()
	popped, err := queue.Pop(contextx.NewContext(), 1)
	asserter.NoError(err)
	asserter.Nil(popped)
	asserter.GreaterOrEqual(time.Since(start), time.Second)
}

func TestMemoryQueue_PushAfterClose(t *testing.T) {
	asserter := assert.New(t)
	queue := NewMemoryQueue()
	asserter.NoError(queue.Close())
	asserter.Error(queue.Push(contextx.NewContext(), &Item{SubTaskID: "sub-1"}))
}

func TestNew_SchemeSelection(t *testing.T) {
	asserter := assert.New(t)

	queue, err := New("memory://", "test-queue")
	asserter.NoError(err)
	asserter.IsType(&MemoryQueue{}, queue)

	_, err = New("kafka://localhost", "test-queue")
	asserter.Error(err)
}
