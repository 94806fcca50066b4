package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examgrader/internal/llm/prompts"
	"github.com/pavelanni/examgrader/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultTemperature = 0.5
	defaultBackoff     = time.Second
)

// Option configures an LLM client.
type Option func(*settings)

type settings struct {
	variant     prompts.PromptVariant
	temperature float32
	retries     int
	backoff     time.Duration
}

// WithVariant selects the prompt variant. Unknown names fall back to
// standard with a warning.
func WithVariant(v string) Option {
	return func(s *settings) {
		if !prompts.IsValidVariant(v) {
			slog.Warn("unknown prompt variant, using standard", "variant", v)
			v = string(prompts.PromptStandard)
		}
		s.variant = prompts.PromptVariant(v)
	}
}

func WithTemperature(t float32) Option { return func(s *settings) { s.temperature = t } }

// WithRetries sets how many times a failed call is retried.
func WithRetries(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option { return func(s *settings) { s.backoff = d } }

func newSettings(opts []Option) settings {
	s := settings{
		variant:     prompts.PromptStandard,
		temperature: defaultTemperature,
		backoff:     defaultBackoff,
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
	settings
}

var _ model.EssayGrader = (*Client)(nil)

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, opts ...Option) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    modelName,
		settings: newSettings(opts),
	}
}

// GradeEssay asks the model to score a free-text answer on a 0-10 scale.
func (c *Client) GradeEssay(ctx context.Context, req model.EssayRequest) (*model.EssayAssessment, error) {
	prompt, err := prompts.BuildEssayPrompt(c.variant, req)
	if err != nil {
		return nil, fmt.Errorf("build essay prompt: %w", err)
	}
	return withRetries(ctx, c.retries, c.backoff, func(ctx context.Context) (*model.EssayAssessment, error) {
		return c.complete(ctx, prompt)
	})
}

func (c *Client) complete(ctx context.Context, prompt string) (*model.EssayAssessment, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, &GradeError{Reason: "LLM API call", Wrapped: err}
	}

	if len(resp.Choices) == 0 {
		return nil, malformed("LLM returned no choices", nil)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "raw", raw)

	a, err := parseAssessment(raw)
	if err != nil {
		return nil, err
	}
	slog.Info("essay graded", "model", c.model, "score", a.Score)
	return a, nil
}

// Ping verifies the endpoint is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
