package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/pavelanni/examgrader/internal/llm/prompts"
	"github.com/pavelanni/examgrader/internal/model"
)

// GeminiClient grades essays through the Gemini API with the same prompt
// and JSON contract as Client.
type GeminiClient struct {
	client *genai.Client
	model  string
	settings
}

var _ model.EssayGrader = (*GeminiClient)(nil)

// NewGemini connects to Gemini. Close releases the connection.
func NewGemini(ctx context.Context, apiKey, modelName string, opts ...Option) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini API key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{
		client:   cl,
		model:    strings.TrimSpace(modelName),
		settings: newSettings(opts),
	}, nil
}

// Close closes the underlying client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// GradeEssay asks Gemini to score a free-text answer on a 0-10 scale.
func (g *GeminiClient) GradeEssay(ctx context.Context, req model.EssayRequest) (*model.EssayAssessment, error) {
	prompt, err := prompts.BuildEssayPrompt(g.variant, req)
	if err != nil {
		return nil, fmt.Errorf("build essay prompt: %w", err)
	}

	m := g.client.GenerativeModel(g.model)
	temp := g.temperature
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompts.SystemMessage)},
	}

	return withRetries(ctx, g.retries, g.backoff, func(ctx context.Context) (*model.EssayAssessment, error) {
		resp, err := m.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, &GradeError{Reason: "gemini API call", Wrapped: err}
		}
		raw := firstText(resp)
		slog.Debug("gemini response", "model", g.model, "raw", raw)
		return parseAssessment(raw)
	})
}

// Ping checks that the configured model exists.
func (g *GeminiClient) Ping(ctx context.Context) error {
	if _, err := g.client.GenerativeModel(g.model).Info(ctx); err != nil {
		return fmt.Errorf("gemini model info: %w", err)
	}
	return nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
