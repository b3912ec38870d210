package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"workbench/app/llm"
	"workbench/pkg/contextx"
)

const httpToolTimeout = 30 * time.Second

// maximum bytes returned to the model from an HTTP tool response
const httpToolBodyLimit = 64 * 1024

// NewStandardRegistry returns the built-in toolbox: echo for loop testing,
// http_get and http_post_json for calling external collaborators.
func NewStandardRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(echoTool())
	_ = r.Register(httpGetTool())
	_ = r.Register(httpPostJsonTool())
	return r
}

func echoTool() Tool {
	return Tool{
		Schema: llm.ToolSchema{
			Type: "function",
			Function: llm.FunctionSchema{
				Name:        "echo",
				Description: "Return the given text unchanged.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"text": map[string]interface{}{
							"type":        "string",
							"description": "Text to echo back.",
						},
					},
					"required": []string{"text"},
				},
			},
		},
		Handler: func(ctx *contextx.Context, args map[string]interface{}) (interface{}, error) {
			text, _ := args["text"].(string)
			return map[string]interface{}{"text": text}, nil
		},
	}
}

func httpGetTool() Tool {
	return Tool{
		Schema: llm.ToolSchema{
			Type: "function",
			Function: llm.FunctionSchema{
				Name:        "http_get",
				Description: "Fetch a URL with HTTP GET and return status and body.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"url": map[string]interface{}{
							"type":        "string",
							"description": "Absolute URL to fetch.",
						},
					},
					"required": []string{"url"},
				},
			},
		},
		Handler: func(ctx *contextx.Context, args map[string]interface{}) (interface{}, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return nil, errors.New("url is required")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			return doHTTPTool(req)
		},
	}
}

func httpPostJsonTool() Tool {
	return Tool{
		Schema: llm.ToolSchema{
			Type: "function",
			Function: llm.FunctionSchema{
				Name:        "http_post_json",
				Description: "POST a JSON body to a URL and return status and body.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"url": map[string]interface{}{
							"type":        "string",
							"description": "Absolute URL to post to.",
						},
						"body": map[string]interface{}{
							"type":        "object",
							"description": "JSON object to send as the request body.",
						},
					},
					"required": []string{"url"},
				},
			},
		},
		Handler: func(ctx *contextx.Context, args map[string]interface{}) (interface{}, error) {
			url, _ := args["url"].(string)
			if url == "" {
				return nil, errors.New("url is required")
			}

			body, err := json.Marshal(args["body"])
			if err != nil {
				return nil, err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			return doHTTPTool(req)
		},
	}
}

func doHTTPTool(req *http.Request) (interface{}, error) {
	client := &http.Client{Timeout: httpToolTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpToolBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return map[string]interface{}{
		"status": resp.StatusCode,
		"body":   string(body),
	}, nil
}
