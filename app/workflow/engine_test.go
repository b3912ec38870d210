package workflow

import (
	"errors"
	"fmt"
	"testing"

	"workbench/app/config"
	"workbench/app/db"
	"workbench/app/db/models"
	"workbench/app/llm"
	"workbench/app/objects"
	"workbench/app/retrieval"
	"workbench/app/states"
	"workbench/app/tools"
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

// scriptedClient replays canned replies in order.
type scriptedClient struct {
	replies []llm.Message
	calls   int
}

func (c *scriptedClient) Chat(ctx *contextx.Context, messages []llm.Message, schemas []llm.ToolSchema) (*llm.Message, error) {
	if c.calls >= len(c.replies) {
		return nil, errors.New("no scripted reply left")
	}
	reply := c.replies[c.calls]
	c.calls++
	return &reply, nil
}

func testEngine(client, planner llm.Client, mode string, maxIterations int) *Engine {
	provider := retrieval.NewLocalProvider(0.3, 5)
	provider.Register(retrieval.Document{Name: "doc-1", Title: "Widget Manual", Content: "how widgets work"})
	return NewEngine(client, planner, provider, tools.NewStandardRegistry(), config.WorkflowConfig{
		Mode:          mode,
		MaxIterations: maxIterations,
		EventBuffer:   64,
	})
}

func drain(emitter *Emitter) []interface{} {
	var events []interface{}
	for event := range emitter.Events() {
		events = append(events, event)
	}
	return events
}

func taskEvents(events []interface{}) []TaskEvent {
	var out []TaskEvent
	for _, e := range events {
		if te, ok := e.(TaskEvent); ok {
			out = append(out, te)
		}
	}
	return out
}

func systemEvents(events []interface{}) []SystemEvent {
	var out []SystemEvent
	for _, e := range events {
		if se, ok := e.(SystemEvent); ok {
			out = append(out, se)
		}
	}
	return out
}

func newSession(t *testing.T, ctx *contextx.Context) *objects.ChatSession {
	sess := objects.NewChatSession()
	sess.Title = "test"
	require.NoError(t, sess.Save(ctx))
	return sess
}

func TestRun_StaticSequence(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	sess := newSession(t, ctx)

	client := &scriptedClient{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "the answer", ReasoningContent: "thinking"},
	}}
	eng := testEngine(client, &scriptedClient{}, ModeStatic, 10)

	agent := DefaultAgent()
	agent.DocIDs = []string{"doc-1"}
	actx := NewAgentContext(sess.ID, "", "how do widgets work", agent, nil)
	events := drain(eng.Run(ctx, actx))

	tasks := taskEvents(events)
	var sequence []string
	for _, te := range tasks {
		sequence = append(sequence, te.Step+":"+te.Status)
	}
	asserter.Equal([]string{
		"retrieve:running", "retrieve:success",
		"execute:running",
		"execute:running", // reasoning chunk
		"execute:running", // content chunk
		"execute:success",
		"persist:running", "persist:success",
	}, sequence)
	asserter.Empty(systemEvents(events))

	// the turn was persisted: user message plus assistant message
	msgs, err := sess.GetMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	asserter.Equal(llm.RoleUser, msgs[0].Role)
	asserter.Equal("the answer", msgs[1].Content)
	asserter.Equal("thinking", msgs[1].ReasoningContent)

	// retrieval outcome travels with the assistant message
	require.Len(t, actx.RetrievedReferences, 1)
	asserter.Equal("Widget Manual", actx.RetrievedReferences[0].Title)
	asserter.NotNil(msgs[1].MetaData)
}

func TestRun_StaticNoDocsRetrieveIsNoop(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	sess := newSession(t, ctx)

	client := &scriptedClient{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "hi"},
	}}
	eng := testEngine(client, &scriptedClient{}, ModeStatic, 10)

	agent := DefaultAgent()
	agent.DocIDs = nil
	actx := NewAgentContext(sess.ID, "", "hello", agent, nil)
	events := drain(eng.Run(ctx, actx))

	tasks := taskEvents(events)
	asserter.Equal("retrieve", tasks[0].Step)
	asserter.Equal(TaskRunning, tasks[0].Status)
	asserter.Equal("retrieve", tasks[1].Step)
	asserter.Equal(TaskSuccess, tasks[1].Status)
	asserter.Empty(actx.RetrievedReferences)
}

func TestRun_DynamicFinish(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	sess := newSession(t, ctx)

	planner := &scriptedClient{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: `{"next_step": "execute", "reasoning": "answer now", "plan": "just answer"}`},
		{Role: llm.RoleAssistant, Content: `{"next_step": "finish", "reasoning": "done", "plan": "just answer"}`},
	}}
	client := &scriptedClient{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: "dynamic answer"},
	}}

	agent := DefaultAgent()
	agent.Mode = ModeDynamic
	eng := testEngine(client, planner, ModeStatic, 10)

	actx := NewAgentContext(sess.ID, "", "question", agent, nil)
	events := drain(eng.Run(ctx, actx))

	asserter.Equal(2, planner.calls)
	asserter.Equal("just answer", actx.Plan)
	asserter.Empty(systemEvents(events))

	msgs, err := sess.GetMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	asserter.Equal("dynamic answer", msgs[1].Content)
}

func TestRun_DynamicIterationCap(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	sess := newSession(t, ctx)

	// the planner never finishes
	planner := &scriptedClient{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: `{"next_step": "retrieve"}`},
		{Role: llm.RoleAssistant, Content: `{"next_step": "retrieve"}`},
		{Role: llm.RoleAssistant, Content: `{"next_step": "retrieve"}`},
	}}

	agent := DefaultAgent()
	agent.Mode = ModeDynamic
	agent.MaxIterations = 2
	eng := testEngine(&scriptedClient{}, planner, ModeStatic, 10)

	actx := NewAgentContext(sess.ID, "", "question", agent, nil)
	events := drain(eng.Run(ctx, actx))

	asserter.Equal(2, planner.calls)
	system := systemEvents(events)
	require.Len(t, system, 1)
	asserter.Equal(SystemError, system[0].Status)
	asserter.Contains(system[0].Output, "iteration cap")

	// persist still ran
	msgs, err := sess.GetMessages()
	require.NoError(t, err)
	asserter.Len(msgs, 2)
}

func TestRun_UnknownPlannerStepFails(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	sess := newSession(t, ctx)

	planner := &scriptedClient{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: `{"next_step": "teleport"}`},
	}}
	agent := DefaultAgent()
	agent.Mode = ModeDynamic
	eng := testEngine(&scriptedClient{}, planner, ModeStatic, 10)

	actx := NewAgentContext(sess.ID, "", "question", agent, nil)
	events := drain(eng.Run(ctx, actx))

	tasks := taskEvents(events)
	var failed []TaskEvent
	for _, te := range tasks {
		if te.Status == TaskFailed {
			failed = append(failed, te)
		}
	}
	require.Len(t, failed, 1)
	asserter.Equal(string(states.StepPlan), failed[0].Step)

	system := systemEvents(events)
	require.Len(t, system, 1)
	asserter.Equal(SystemError, system[0].Status)
}

func TestRun_ReservedPlannerStepSingleTerminal(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	sess := newSession(t, ctx)

	planner := &scriptedClient{replies: []llm.Message{
		{Role: llm.RoleAssistant, Content: `{"next_step": "persist", "reasoning": "wrap up"}`},
	}}
	agent := DefaultAgent()
	agent.Mode = ModeDynamic
	eng := testEngine(&scriptedClient{}, planner, ModeStatic, 10)

	actx := NewAgentContext(sess.ID, "", "question", agent, nil)
	events := drain(eng.Run(ctx, actx))

	// the plan step reports exactly one terminal status, failed
	var planStatuses []string
	for _, te := range taskEvents(events) {
		if te.Step == string(states.StepPlan) {
			planStatuses = append(planStatuses, te.Status)
		}
	}
	asserter.Equal([]string{TaskRunning, TaskFailed}, planStatuses)

	system := systemEvents(events)
	require.Len(t, system, 1)
	asserter.Equal(SystemError, system[0].Status)
	asserter.Contains(system[0].Output, "reserved step")

	// the engine-owned persist ran regardless
	msgs, err := sess.GetMessages()
	require.NoError(t, err)
	asserter.Len(msgs, 2)
}

func TestRun_ExecuteErrorStillPersists(t *testing.T) {
	asserter := assert.New(t)
	setupTestDB(t)
	ctx := contextx.NewContext()
	sess := newSession(t, ctx)

	// model call fails outright
	eng := testEngine(&scriptedClient{}, &scriptedClient{}, ModeStatic, 10)

	actx := NewAgentContext(sess.ID, "", "question", DefaultAgent(), nil)
	events := drain(eng.Run(ctx, actx))

	system := systemEvents(events)
	require.Len(t, system, 1)
	asserter.Equal(SystemError, system[0].Status)

	// persist still wrote the user turn, with an empty assistant answer
	msgs, err := sess.GetMessages()
	require.NoError(t, err)
	asserter.Len(msgs, 2)
}

func TestLoadAgentDefinitions_MissingDir(t *testing.T) {
	asserter := assert.New(t)
	defs, err := LoadAgentDefinitions("/does/not/exist")
	asserter.NoError(err)
	asserter.Empty(defs)
}

func TestAgentDefinition_Validate(t *testing.T) {
	asserter := assert.New(t)

	def := &AgentDefinition{Name: "a", Mode: "static"}
	asserter.NoError(def.Validate())

	def = &AgentDefinition{Mode: "static"}
	asserter.Error(def.Validate())

	def = &AgentDefinition{Name: "a", Mode: "sideways"}
	asserter.Error(def.Validate())
}
