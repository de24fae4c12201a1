package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"ether-stories/internal/config"
	"ether-stories/internal/prompts"
)

const (
	transportRetries = 2
	transportDelay   = 500 * time.Millisecond
)

// WriterClient drafts chapter text through an OpenAI-compatible chat
// completion endpoint. Transport failures are retried a bounded number of
// times; content-level retries belong to the orchestrator.
type WriterClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewWriterClient creates a writer client from configuration.
func NewWriterClient(cfg config.WriterConfig) *WriterClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout.Duration()}

	return &WriterClient{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
	}
}

// Generate produces draft text for the prompt, truncated at maxTokens.
func (w *WriterClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: w.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.WriterSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: w.temperature,
		MaxTokens:   maxTokens,
	}

	resp, err := chatWithRetry(ctx, w.client, req)
	if err != nil {
		return "", fmt.Errorf("writer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("writer: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// chatWithRetry performs a chat completion with a small fixed retry on
// transport-level failures.
func chatWithRetry(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= transportRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(transportDelay * time.Duration(attempt)):
			}
		}

		resp, err := client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	return openai.ChatCompletionResponse{}, fmt.Errorf("chat completion failed after retries: %w", lastErr)
}

// isRetryable reports whether a chat completion error is worth retrying at
// the transport level: rate limits, server errors, timeouts.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	// Network-level errors (no API response at all) are retryable.
	return true
}
