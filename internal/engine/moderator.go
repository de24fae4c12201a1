package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"ether-stories/internal/config"
	"ether-stories/internal/interfaces"
	"ether-stories/internal/prompts"
)

// ModeratorClient asks an OpenAI-compatible endpoint to judge a draft. It
// may share a backend with the writer but is wired and configured as a
// separate capability.
type ModeratorClient struct {
	client      *openai.Client
	model       string
	temperature float32
	templates   *prompts.TemplateEngine
}

// NewModeratorClient creates a judge client from configuration.
func NewModeratorClient(cfg config.ModeratorConfig, templates *prompts.TemplateEngine) *ModeratorClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout.Duration()}

	return &ModeratorClient{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		templates:   templates,
	}
}

// Judge submits the draft with its continuity context and parses the
// structured verdict. Transport failures and unparseable responses surface
// as errors; the caller decides the fail mode.
func (m *ModeratorClient) Judge(ctx context.Context, req interfaces.JudgeRequest) (interfaces.Verdict, error) {
	prompt, err := m.templates.BuildJudgePrompt(prompts.JudgeInput{
		Text:            req.Text,
		Title:           req.Title,
		MainCharacter:   req.MainCharacter,
		ExpectedSummary: req.ExpectedSummary,
		CharacterNames:  req.CharacterNames,
		Forbidden:       req.Forbidden,
		PriorChapters:   req.PriorChapters,
	})
	if err != nil {
		return interfaces.Verdict{}, fmt.Errorf("moderator: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: m.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := chatWithRetry(ctx, m.client, chatReq)
	if err != nil {
		return interfaces.Verdict{}, fmt.Errorf("moderator: %w", err)
	}
	if len(resp.Choices) == 0 {
		return interfaces.Verdict{}, errors.New("moderator: no choices returned")
	}

	verdict, err := ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return interfaces.Verdict{}, fmt.Errorf("moderator: %w", err)
	}
	return verdict, nil
}
