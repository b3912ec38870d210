package llm

import (
	"encoding/json"
	"fmt"

	"workbench/pkg/contextx"
	"workbench/pkg/log"
)

// Handler executes one tool call. Implementations run synchronously and
// return a JSON-encodable result.
type Handler func(ctx *contextx.Context, args map[string]interface{}) (interface{}, error)

// LoopResult is the outcome of a tool loop: the assistant message that ended
// the loop plus the full transcript including tool results.
type LoopResult struct {
	FinalMessage *Message
	Messages     []Message
}

// RunToolLoop drives the chat until the model stops requesting tools. Each
// requested call is executed in emission order and answered with a tool
// message carrying the matching tool_call_id. Tool failures are reported back
// to the model rather than aborting the loop; only a failed model call ends
// the run early.
func RunToolLoop(ctx *contextx.Context, client Client, messages []Message, tools []ToolSchema, toolMap map[string]Handler) (*LoopResult, error) {
	transcript := append([]Message{}, messages...)

	for {
		reply, err := client.Chat(ctx, transcript, tools)
		if err != nil {
			return nil, fmt.Errorf("tool loop model call: %w", err)
		}

		transcript = append(transcript, *reply)
		if len(reply.ToolCalls) == 0 {
			return &LoopResult{FinalMessage: reply, Messages: transcript}, nil
		}

		for _, call := range reply.ToolCalls {
			result := executeToolCall(ctx, call, toolMap)
			content, err := json.Marshal(result)
			if err != nil {
				content = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
			}
			transcript = append(transcript, Message{
				Role:       RoleTool,
				Content:    string(content),
				ToolCallID: call.ID,
			})
		}
	}
}

func executeToolCall(ctx *contextx.Context, call ToolCall, toolMap map[string]Handler) interface{} {
	args := map[string]interface{}{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			// keep going with an empty argument bag, the tool decides
			// whether missing arguments are fatal
			log.Warnf(ctx, "tool %s got malformed arguments: %s", call.Function.Name, err.Error())
			args = map[string]interface{}{}
		}
	}

	handler, ok := toolMap[call.Function.Name]
	if !ok {
		return map[string]interface{}{
			"error": fmt.Sprintf("Unknown tool: %s", call.Function.Name),
			"args":  args,
		}
	}

	result, err := handler(ctx, args)
	if err != nil {
		return map[string]interface{}{
			"error": err.Error(),
			"args":  args,
		}
	}
	return result
}
