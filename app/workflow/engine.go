package workflow

import (
	"fmt"

	"workbench/app/config"
	"workbench/app/llm"
	"workbench/app/retrieval"
	"workbench/app/states"
	"workbench/app/tools"
	"workbench/pkg/contextx"
	"workbench/pkg/log"
)

// Engine runs one agent workflow per chat turn and reports progress through
// an Emitter. Static mode walks retrieve -> execute -> persist; dynamic mode
// lets a planner model pick each next step under an iteration cap.
type Engine struct {
	client   llm.Client
	planner  llm.Client
	provider retrieval.Provider
	registry *tools.Registry

	mode          string
	maxIterations int
	eventBuffer   int
}

func NewEngine(client, planner llm.Client, provider retrieval.Provider, registry *tools.Registry, cfg config.WorkflowConfig) *Engine {
	return &Engine{
		client:        client,
		planner:       planner,
		provider:      provider,
		registry:      registry,
		mode:          cfg.Mode,
		maxIterations: cfg.MaxIterations,
		eventBuffer:   cfg.EventBuffer,
	}
}

// Run starts the workflow in its own goroutine and returns the emitter the
// caller drains. The emitter channel is closed when the run is over; the
// transport layer appends the terminator.
func (e *Engine) Run(ctx *contextx.Context, actx *AgentContext) *Emitter {
	emitter := NewEmitter(e.eventBuffer)
	// the goroutine works on its own copy of the request data so the handler
	// side can keep using ctx without sharing the map
	runCtx := ctx.Clone()
	go func() {
		defer emitter.Close()
		e.run(runCtx, actx, emitter)
	}()
	return emitter
}

func (e *Engine) run(ctx *contextx.Context, actx *AgentContext, emitter *Emitter) {
	mode := actx.Agent.Mode
	if mode == "" {
		mode = e.mode
	}

	var runErr error
	switch mode {
	case ModeDynamic:
		runErr = e.runDynamic(ctx, actx, emitter)
	default:
		runErr = e.runStatic(ctx, actx, emitter)
	}

	if runErr != nil {
		log.Errorf(ctx, "workflow run for session %s failed: %s", actx.SessionID, runErr.Error())
		if ctx.Err() == nil {
			_ = emitter.System(ctx, SystemError, runErr.Error())
		}
	}

	// persist always runs once, best-effort even after failure or cancel
	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = contextx.NewContextFromMap(ctx.GetMap())
	}
	if err := e.stepPersist(persistCtx, actx, emitter); err != nil {
		log.Errorf(ctx, "persist for session %s failed: %s", actx.SessionID, err.Error())
	}
}

func (e *Engine) runStatic(ctx *contextx.Context, actx *AgentContext, emitter *Emitter) error {
	if err := e.stepRetrieve(ctx, actx, emitter); err != nil {
		return e.markFailed(ctx, emitter, states.StepRetrieve, err)
	}
	if err := e.stepExecute(ctx, actx, emitter); err != nil {
		return e.markFailed(ctx, emitter, states.StepExecute, err)
	}
	return nil
}

func (e *Engine) runDynamic(ctx *contextx.Context, actx *AgentContext, emitter *Emitter) error {
	maxIterations := actx.Agent.MaxIterations
	if maxIterations <= 0 {
		maxIterations = e.maxIterations
	}

	for {
		if actx.Iteration >= maxIterations {
			return emitter.System(ctx, SystemError,
				fmt.Sprintf("iteration cap %d reached before finish", maxIterations))
		}
		actx.Iteration++

		next, err := e.stepPlan(ctx, actx, emitter)
		if err != nil {
			return e.markFailed(ctx, emitter, states.StepPlan, err)
		}

		switch next {
		case states.StepFinish:
			return nil
		case states.StepRetrieve:
			if err := e.stepRetrieve(ctx, actx, emitter); err != nil {
				return e.markFailed(ctx, emitter, states.StepRetrieve, err)
			}
		case states.StepExecute:
			if err := e.stepExecute(ctx, actx, emitter); err != nil {
				return e.markFailed(ctx, emitter, states.StepExecute, err)
			}
		}
	}
}

// markFailed emits the failed task event for the step, unless the run was
// cancelled, in which case the consumer is gone.
func (e *Engine) markFailed(ctx *contextx.Context, emitter *Emitter, step states.StepKind, err error) error {
	if ctx.Err() == nil {
		_ = emitter.Task(ctx, string(step), TaskFailed, map[string]interface{}{"error": err.Error()})
	}
	return err
}
