package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"workbench/pkg/contextx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replays canned replies in order.
type scriptedClient struct {
	replies []Message
	calls   int

	// transcripts records the messages of every call for assertions
	transcripts [][]Message
}

func (c *scriptedClient) Chat(ctx *contextx.Context, messages []Message, tools []ToolSchema) (*Message, error) {
	if c.calls >= len(c.replies) {
		return nil, errors.New("no scripted reply left")
	}
	c.transcripts = append(c.transcripts, append([]Message{}, messages...))
	reply := c.replies[c.calls]
	c.calls++
	return &reply, nil
}

func echoHandler(ctx *contextx.Context, args map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"echoed": args["text"]}, nil
}

func TestRunToolLoop_NoToolCalls(t *testing.T) {
	asserter := assert.New(t)
	client := &scriptedClient{replies: []Message{
		{Role: RoleAssistant, Content: "direct answer"},
	}}

	result, err := RunToolLoop(contextx.NewContext(), client, []Message{UserMessage("hi")}, nil, nil)
	asserter.NoError(err)
	asserter.Equal("direct answer", result.FinalMessage.Content)
	asserter.Equal(1, client.calls)
	asserter.Len(result.Messages, 2)
}

func TestRunToolLoop_RoundTrip(t *testing.T) {
	asserter := assert.New(t)
	client := &scriptedClient{replies: []Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "call-1", Type: "function", Function: FunctionCall{Name: "echo", Arguments: `{"text": "hello"}`}},
			},
		},
		{Role: RoleAssistant, Content: "done"},
	}}

	toolMap := map[string]Handler{"echo": echoHandler}
	result, err := RunToolLoop(contextx.NewContext(), client, []Message{UserMessage("hi")}, nil, toolMap)
	require.NoError(t, err)

	asserter.Equal("done", result.FinalMessage.Content)
	// transcript: user, assistant(tool_calls), tool, assistant
	require.Len(t, result.Messages, 4)
	toolMsg := result.Messages[2]
	asserter.Equal(RoleTool, toolMsg.Role)
	asserter.Equal("call-1", toolMsg.ToolCallID)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &payload))
	asserter.Equal("hello", payload["echoed"])

	// the second model call saw the tool result
	secondCall := client.transcripts[1]
	asserter.Equal(RoleTool, secondCall[len(secondCall)-1].Role)
}

func TestRunToolLoop_UnknownTool(t *testing.T) {
	asserter := assert.New(t)
	client := &scriptedClient{replies: []Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "call-1", Function: FunctionCall{Name: "missing_tool", Arguments: `{"x": 1}`}},
			},
		},
		{Role: RoleAssistant, Content: "recovered"},
	}}

	result, err := RunToolLoop(contextx.NewContext(), client, []Message{UserMessage("hi")}, nil, map[string]Handler{})
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Messages[2].Content), &payload))
	asserter.Equal("Unknown tool: missing_tool", payload["error"])
	asserter.Equal(map[string]interface{}{"x": float64(1)}, payload["args"])
}

func TestRunToolLoop_MalformedArguments(t *testing.T) {
	asserter := assert.New(t)
	var gotArgs map[string]interface{}
	toolMap := map[string]Handler{
		"echo": func(ctx *contextx.Context, args map[string]interface{}) (interface{}, error) {
			gotArgs = args
			return "ok", nil
		},
	}
	client := &scriptedClient{replies: []Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "call-1", Function: FunctionCall{Name: "echo", Arguments: `{not valid json`}},
			},
		},
		{Role: RoleAssistant, Content: "done"},
	}}

	_, err := RunToolLoop(contextx.NewContext(), client, []Message{UserMessage("hi")}, nil, toolMap)
	require.NoError(t, err)
	// the tool still ran, with an empty argument bag
	asserter.NotNil(gotArgs)
	asserter.Empty(gotArgs)
}

func TestRunToolLoop_ToolErrorReportedToModel(t *testing.T) {
	asserter := assert.New(t)
	toolMap := map[string]Handler{
		"boom": func(ctx *contextx.Context, args map[string]interface{}) (interface{}, error) {
			return nil, errors.New("exploded")
		},
	}
	client := &scriptedClient{replies: []Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "call-1", Function: FunctionCall{Name: "boom", Arguments: `{}`}},
			},
		},
		{Role: RoleAssistant, Content: "handled"},
	}}

	result, err := RunToolLoop(contextx.NewContext(), client, []Message{UserMessage("hi")}, nil, toolMap)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Messages[2].Content), &payload))
	asserter.Equal("exploded", payload["error"])
}

func TestRunToolLoop_OrderingPreserved(t *testing.T) {
	asserter := assert.New(t)
	var order []string
	handler := func(name string) Handler {
		return func(ctx *contextx.Context, args map[string]interface{}) (interface{}, error) {
			order = append(order, name)
			return "ok", nil
		}
	}
	toolMap := map[string]Handler{"first": handler("first"), "second": handler("second")}
	client := &scriptedClient{replies: []Message{
		{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{
				{ID: "call-1", Function: FunctionCall{Name: "first", Arguments: `{}`}},
				{ID: "call-2", Function: FunctionCall{Name: "second", Arguments: `{}`}},
			},
		},
		{Role: RoleAssistant, Content: "done"},
	}}

	result, err := RunToolLoop(contextx.NewContext(), client, []Message{UserMessage("hi")}, nil, toolMap)
	require.NoError(t, err)
	asserter.Equal([]string{"first", "second"}, order)
	asserter.Equal("call-1", result.Messages[2].ToolCallID)
	asserter.Equal("call-2", result.Messages[3].ToolCallID)
}

func TestRunToolLoop_ModelErrorAborts(t *testing.T) {
	asserter := assert.New(t)
	client := &scriptedClient{}

	_, err := RunToolLoop(contextx.NewContext(), client, []Message{UserMessage("hi")}, nil, nil)
	asserter.Error(err)
}
