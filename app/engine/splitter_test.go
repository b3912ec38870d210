package engine

import (
	"errors"
	"testing"

	"workbench/app/llm"
	"workbench/app/objects"
	"workbench/pkg/contextx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedClient returns one fixed reply for every call.
type cannedClient struct {
	content string
	err     error
	calls   int
}

func (c *cannedClient) Chat(ctx *contextx.Context, messages []llm.Message, tools []llm.ToolSchema) (*llm.Message, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Message{Role: llm.RoleAssistant, Content: c.content}, nil
}

func TestSplit_ValidPlan(t *testing.T) {
	asserter := assert.New(t)
	client := &cannedClient{content: `[
		{"name": "fetch", "task_type": "DATA_RETRIEVAL", "execution_order": 1, "dependencies": []},
		{"name": "build", "task_type": "CODE_GEN", "execution_order": 2, "dependencies": ["fetch"]}
	]`}

	specs, err := NewSplitter(client).Split(contextx.NewContext(), "build a report")
	require.NoError(t, err)
	asserter.Equal(1, client.calls)
	require.Len(t, specs, 2)
	asserter.Equal("fetch", specs[0].Name)
	asserter.Equal([]string{"fetch"}, specs[1].Dependencies)
}

func TestSplit_FencedOutput(t *testing.T) {
	asserter := assert.New(t)
	client := &cannedClient{content: "```json\n[{\"name\": \"a\", \"task_type\": \"API_CALL\"}]\n```"}

	specs, err := NewSplitter(client).Split(contextx.NewContext(), "call an api")
	require.NoError(t, err)
	asserter.Len(specs, 1)
}

func TestSplit_EmptyPlanIsLegal(t *testing.T) {
	asserter := assert.New(t)
	client := &cannedClient{content: `[]`}

	specs, err := NewSplitter(client).Split(contextx.NewContext(), "nothing to do")
	asserter.NoError(err)
	asserter.Empty(specs)
}

func TestSplit_Failures(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"invalid json", `this is not json`},
		{"missing name", `[{"task_type": "CODE_GEN"}]`},
		{"missing type", `[{"name": "a"}]`},
		{"unknown type", `[{"name": "a", "task_type": "TELEPORT"}]`},
		{"duplicate names", `[{"name": "a", "task_type": "CODE_GEN"}, {"name": "a", "task_type": "CODE_GEN"}]`},
		{"unknown dependency", `[{"name": "a", "task_type": "CODE_GEN", "dependencies": ["ghost"]}]`},
		{"cycle", `[
			{"name": "a", "task_type": "CODE_GEN", "dependencies": ["b"]},
			{"name": "b", "task_type": "CODE_GEN", "dependencies": ["a"]}
		]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &cannedClient{content: tc.content}
			_, err := NewSplitter(client).Split(contextx.NewContext(), "goal")
			assert.True(t, objects.IsSplitError(err), "expected SplitError, got %v", err)
		})
	}
}

func TestSplit_ModelError(t *testing.T) {
	client := &cannedClient{err: errors.New("backend down")}
	_, err := NewSplitter(client).Split(contextx.NewContext(), "goal")
	assert.True(t, objects.IsSplitError(err))
}
