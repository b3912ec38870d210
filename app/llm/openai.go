package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"workbench/app/config"
	"workbench/pkg/contextx"
	"workbench/pkg/log"

	"golang.org/x/time/rate"
)

const maxChatAttempts = 3

// OpenAIClient talks to any OpenAI-compatible chat-completion endpoint over
// plain HTTP. Calls are rate limited per process and retried on transient
// status codes.
type OpenAIClient struct {
	baseURL        string
	apiKey         string
	model          string
	enableThinking bool

	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	return &OpenAIClient{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		enableThinking: cfg.EnableThinking,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}
}

type chatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	Temperature float64      `json:"temperature"`
	// ChatTemplateKwargs toggles thinking on backends that support it.
	ChatTemplateKwargs map[string]interface{} `json:"chat_template_kwargs,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) Chat(ctx *contextx.Context, messages []Message, tools []ToolSchema) (*Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: 0.2,
	}
	if c.enableThinking {
		reqBody.ChatTemplateKwargs = map[string]interface{}{"enable_thinking": true}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxChatAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff(attempt))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.Warnf(ctx, "chat completion attempt %d failed: %s", attempt+1, err.Error())
			continue
		}

		msg, retryable, err := decodeChatResponse(resp)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		log.Warnf(ctx, "chat completion attempt %d failed: %s", attempt+1, err.Error())
	}
	return nil, fmt.Errorf("chat completion failed after %d attempts: %w", maxChatAttempts, lastErr)
}

func decodeChatResponse(resp *http.Response) (*Message, bool, error) {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eresp chatResponse
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		reason := ""
		if eresp.Error != nil {
			reason = eresp.Error.Message
		}
		retryable := resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusRequestTimeout ||
			resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("chat completion status %d: %s", resp.StatusCode, reason)
	}

	var cresp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cresp); err != nil {
		return nil, false, err
	}
	if len(cresp.Choices) == 0 {
		return nil, false, errors.New("chat completion returned no choices")
	}
	msg := cresp.Choices[0].Message
	return &msg, false, nil
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
}
