package workflow

import (
	"workbench/pkg/contextx"
)

// Two disjoint event families flow to the client and are never merged:
// SystemEvent for engine diagnostics and TaskEvent for step progress.

type SystemEvent struct {
	System bool   `json:"system"`
	Status string `json:"status"`
	Output string `json:"output"`
}

type TaskEvent struct {
	Step   string      `json:"step"`
	Status string      `json:"status"`
	Output interface{} `json:"output,omitempty"`
	Plan   string      `json:"plan,omitempty"`
}

const (
	SystemInfo    = "info"
	SystemWarning = "warning"
	SystemError   = "error"

	TaskRunning = "running"
	TaskSuccess = "success"
	TaskFailed  = "failed"
)

// Emitter pushes events into a bounded channel. A slow consumer blocks the
// producer, which is the intended backpressure.
type Emitter struct {
	events chan interface{}
}

func NewEmitter(buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 1
	}
	return &Emitter{
		events: make(chan interface{}, buffer),
	}
}

func (e *Emitter) Events() <-chan interface{} {
	return e.events
}

// Emit blocks until the event is accepted or ctx is cancelled.
func (e *Emitter) Emit(ctx *contextx.Context, event interface{}) error {
	select {
	case e.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) System(ctx *contextx.Context, status, output string) error {
	return e.Emit(ctx, SystemEvent{System: true, Status: status, Output: output})
}

func (e *Emitter) Task(ctx *contextx.Context, step, status string, output interface{}) error {
	return e.Emit(ctx, TaskEvent{Step: step, Status: status, Output: output})
}

// Close signals the consumer that the run produced its last event.
func (e *Emitter) Close() {
	close(e.events)
}
