package mq

import (
	"errors"
	"sync"
	"time"

	"workbench/pkg/contextx"
)

const memoryQueueDepth = 1024

// MemoryQueue is the in-process backend used by tests and single-node
// deployments where no broker is available.
type MemoryQueue struct {
	items chan *Item

	closeMu sync.Mutex
	closed  bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		items: make(chan *Item, memoryQueueDepth),
	}
}

func (q *MemoryQueue) Push(ctx *contextx.Context, item *Item) error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return errors.New("queue closed")
	}

	select {
	case q.items <- item:
		return nil
	default:
		return errors.New("queue full")
	}
}

func (q *MemoryQueue) Pop(ctx *contextx.Context, timeoutSeconds int) (*Item, error) {
	timer := time.NewTimer(time.Duration(timeoutSeconds) * time.Second)
	defer timer.Stop()

	select {
	case item, ok := <-q.items:
		if !ok {
			return nil, errors.New("queue closed")
		}
		return item, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Length() (int, error) {
	return len(q.items), nil
}

func (q *MemoryQueue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.items)
	return nil
}
