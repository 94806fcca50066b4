package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

// ErrMalformedResponse means the model answered, but not with a usable
// assessment.
var ErrMalformedResponse = errors.New("malformed LLM response")

// GradeError is returned when grading fails so the caller can tell a bad
// answer from the model apart from an unreachable model.
type GradeError struct {
	Reason  string
	Wrapped error
}

func (e *GradeError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("grading failed: %s: %v", e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("grading failed: %s", e.Reason)
}

func (e *GradeError) Unwrap() error {
	return e.Wrapped
}

// rawAssessment mirrors the JSON contract with a pointer score so a
// missing field can be told apart from zero.
type rawAssessment struct {
	Score        *float64 `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

func malformed(reason string, err error) error {
	if err != nil {
		return &GradeError{Reason: reason, Wrapped: fmt.Errorf("%w: %w", ErrMalformedResponse, err)}
	}
	return &GradeError{Reason: reason, Wrapped: ErrMalformedResponse}
}

// parseAssessment validates a model reply against the essay contract.
func parseAssessment(raw string) (*model.EssayAssessment, error) {
	body := stripCodeFences(raw)
	if body == "" {
		return nil, malformed("empty response", nil)
	}

	var ra rawAssessment
	if err := json.Unmarshal([]byte(body), &ra); err != nil {
		return nil, malformed("invalid JSON from LLM", err)
	}
	if ra.Score == nil {
		return nil, malformed("response has no score", nil)
	}
	score := *ra.Score
	if math.IsNaN(score) || score < 0 || score > 10 {
		return nil, malformed(fmt.Sprintf("score %v outside [0, 10]", score), nil)
	}

	return &model.EssayAssessment{
		Score:        score,
		Feedback:     strings.TrimSpace(ra.Feedback),
		Strengths:    ra.Strengths,
		Improvements: ra.Improvements,
	}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// withRetries runs call up to retries+1 times with linear back-off.
// It stops early when ctx is done.
func withRetries(ctx context.Context, retries int, backoff time.Duration, call func(context.Context) (*model.EssayAssessment, error)) (*model.EssayAssessment, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying essay grading", "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, &GradeError{Reason: "cancelled while retrying", Wrapped: ctx.Err()}
			case <-time.After(time.Duration(attempt) * backoff):
			}
		}
		a, err := call(ctx)
		if err == nil {
			return a, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if retries == 0 {
		return nil, lastErr
	}
	return nil, &GradeError{
		Reason:  fmt.Sprintf("failed after %d attempts", retries+1),
		Wrapped: lastErr,
	}
}
