package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"workbench/app/llm"
	"workbench/app/prompts"
	"workbench/app/retrieval"
	"workbench/app/states"
	"workbench/pkg/contextx"
)

const runnerBodyLimit = 256 * 1024

// RunResult is what a runner hands back to the worker. Stdout and Stderr
// land in the execution log, Output on the sub-task row.
type RunResult struct {
	Output     map[string]interface{}
	Stdout     string
	Stderr     string
	TokensUsed int
}

// Runner executes one sub-task of a given type.
type Runner interface {
	Run(ctx *contextx.Context, item RunInput) (*RunResult, error)
}

// RunInput is the slice of sub-task state a runner needs.
type RunInput struct {
	SubTaskID    string
	Name         string
	Description  string
	InputContext map[string]interface{}
}

// RunnerSet maps task types to runners, fixed at startup.
type RunnerSet struct {
	runners map[states.TaskType]Runner
}

func NewRunnerSet(client llm.Client, provider retrieval.Provider, sandboxURL string, timeout time.Duration) *RunnerSet {
	return &RunnerSet{
		runners: map[states.TaskType]Runner{
			states.TypeCodeGen:       &codeGenRunner{client: client, sandboxURL: sandboxURL, timeout: timeout},
			states.TypeDataRetrieval: &dataRetrievalRunner{provider: provider, timeout: timeout},
			states.TypeAPICall:       &apiCallRunner{timeout: timeout},
		},
	}
}

func (s *RunnerSet) Get(taskType states.TaskType) (Runner, bool) {
	r, ok := s.runners[taskType]
	return r, ok
}

// codeGenRunner asks the model for code and runs it on the sandbox executor
// collaborator. Without a sandbox configured the generated code itself is the
// output.
type codeGenRunner struct {
	client     llm.Client
	sandboxURL string
	timeout    time.Duration
}

func (r *codeGenRunner) Run(ctx *contextx.Context, item RunInput) (*RunResult, error) {
	goal, _ := item.InputContext["goal"].(string)
	if goal == "" {
		goal = item.Description
	}
	if goal == "" {
		goal = item.Name
	}

	reply, err := r.client.Chat(ctx, []llm.Message{
		llm.SystemMessage("Write a single self-contained Python script that accomplishes the task. Respond with the code only, inside one code fence."),
		llm.UserMessage(goal),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("code generation: %w", err)
	}

	code := prompts.StripCodeFences(reply.Content)
	if code == "" {
		return nil, errors.New("model returned no code")
	}

	if r.sandboxURL == "" {
		return &RunResult{
			Output: map[string]interface{}{"code": code},
			Stdout: code,
		}, nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"language": "python",
		"code":     code,
	})
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, strings.TrimRight(r.sandboxURL, "/")+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox call: %w", err)
	}
	defer resp.Body.Close()

	var sandboxResp struct {
		Stdout   string `json:"stdout"`
		Stderr   string `json:"stderr"`
		ExitCode int    `json:"exit_code"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, runnerBodyLimit)).Decode(&sandboxResp); err != nil {
		return nil, fmt.Errorf("sandbox response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sandbox status %d: %s", resp.StatusCode, sandboxResp.Stderr)
	}
	if sandboxResp.ExitCode != 0 {
		result := &RunResult{
			Output: map[string]interface{}{"code": code, "exit_code": sandboxResp.ExitCode},
			Stdout: sandboxResp.Stdout,
			Stderr: sandboxResp.Stderr,
		}
		return result, fmt.Errorf("sandbox exit code %d", sandboxResp.ExitCode)
	}

	return &RunResult{
		Output: map[string]interface{}{
			"code":      code,
			"stdout":    sandboxResp.Stdout,
			"exit_code": sandboxResp.ExitCode,
		},
		Stdout: sandboxResp.Stdout,
		Stderr: sandboxResp.Stderr,
	}, nil
}

type dataRetrievalRunner struct {
	provider retrieval.Provider
	timeout  time.Duration
}

func (r *dataRetrievalRunner) Run(ctx *contextx.Context, item RunInput) (*RunResult, error) {
	query, _ := item.InputContext["query"].(string)
	if query == "" {
		query = item.Description
	}
	if query == "" {
		return nil, errors.New("data retrieval needs a query")
	}

	var allowed []string
	if names, ok := item.InputContext["allowed_names"].([]interface{}); ok {
		for _, n := range names {
			if s, ok := n.(string); ok {
				allowed = append(allowed, s)
			}
		}
	}

	refs, filtered, err := r.provider.Search(ctx, query, allowed, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	refList := make([]interface{}, 0, len(refs))
	for _, ref := range refs {
		refList = append(refList, map[string]interface{}{
			"title":   ref.Title,
			"score":   ref.Score,
			"preview": ref.Preview,
			"url":     ref.URL,
			"page":    ref.Page,
		})
	}
	return &RunResult{
		Output: map[string]interface{}{
			"references":   refList,
			"filtered_out": len(filtered),
		},
	}, nil
}

// apiCallRunner performs the HTTP request described by the input context:
// url (required), method, headers, body.
type apiCallRunner struct {
	timeout time.Duration
}

func (r *apiCallRunner) Run(ctx *contextx.Context, item RunInput) (*RunResult, error) {
	url, _ := item.InputContext["url"].(string)
	if url == "" {
		return nil, errors.New("api call needs a url")
	}

	method, _ := item.InputContext["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	var reqBody io.Reader
	if body, ok := item.InputContext["body"]; ok && body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := item.InputContext["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, runnerBodyLimit))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RunResult{
			Output: map[string]interface{}{"status": resp.StatusCode},
			Stderr: string(respBody),
		}, fmt.Errorf("api call status %d", resp.StatusCode)
	}

	return &RunResult{
		Output: map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(respBody),
		},
		Stdout: string(respBody),
	}, nil
}
