package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFences(t *testing.T) {
	asserter := assert.New(t)

	asserter.Equal(`{"a": 1}`, StripCodeFences("```json\n{\"a\": 1}\n```"))
	asserter.Equal(`{"a": 1}`, StripCodeFences("```\n{\"a\": 1}\n```"))
	asserter.Equal(`{"a": 1}`, StripCodeFences(`{"a": 1}`))
}

func TestParseJSONArray(t *testing.T) {
	asserter := assert.New(t)

	var out []map[string]interface{}
	err := ParseJSONArray("```json\n[{\"name\": \"a\"}]\n```", &out)
	asserter.NoError(err)
	asserter.Len(out, 1)

	out = nil
	err = ParseJSONArray(`Here is the plan: [{"name": "b"}] hope it helps`, &out)
	asserter.NoError(err)
	asserter.Len(out, 1)
	asserter.Equal("b", out[0]["name"])

	err = ParseJSONArray("not json at all", &out)
	asserter.Error(err)
}

func TestParseJSONObject(t *testing.T) {
	asserter := assert.New(t)

	var out map[string]interface{}
	err := ParseJSONObject("```json\n{\"next_step\": \"finish\"}\n```", &out)
	asserter.NoError(err)
	asserter.Equal("finish", out["next_step"])

	out = nil
	err = ParseJSONObject(`The decision is {"next_step": "execute"} as planned`, &out)
	asserter.NoError(err)
	asserter.Equal("execute", out["next_step"])
}

func TestSplitterSystemPrompt(t *testing.T) {
	asserter := assert.New(t)

	prompt, err := SplitterSystemPrompt("")
	asserter.NoError(err)
	asserter.Contains(prompt, "task_type")
	asserter.NotContains(prompt, "extra")

	prompt, err = SplitterSystemPrompt("Prefer small sub-tasks.")
	asserter.NoError(err)
	asserter.Contains(prompt, "Prefer small sub-tasks.")
}
