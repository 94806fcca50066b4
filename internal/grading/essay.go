package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

var (
	// ErrNoCapability means no essay grading capability is configured.
	ErrNoCapability = errors.New("essay grading capability not configured")
	// ErrMalformedAssessment means the capability answered with an unusable payload.
	ErrMalformedAssessment = errors.New("malformed essay assessment")
)

// maxEssayScore is the top of the capability's scoring scale.
const maxEssayScore = 10.0

// essayGrader grades short_answer and essay through the injected
// capability. Any capability failure switches to exactMatchFallback.
type essayGrader struct {
	capability model.EssayGrader
	threshold  float64
	timeout    time.Duration
	logger     *slog.Logger
}

func (essayGrader) Shape() Shape { return ShapeText }

func (g essayGrader) Grade(ctx context.Context, q Question) (Outcome, error) {
	cat := catalogFrom(ctx)
	if q.Submitted.Empty() {
		return Outcome{Feedback: cat.T("NoAnswer")}, nil
	}

	a, err := g.assess(ctx, q)
	if err != nil {
		g.logger.Warn("AI grading unavailable, using exact-match fallback",
			"question_type", q.Type,
			"error", err,
		)
		return exactMatchFallback(ctx, q), nil
	}

	score := a.Score / maxEssayScore
	return Outcome{
		Score:        score,
		Correct:      score >= g.threshold,
		Feedback:     a.Feedback,
		Strengths:    a.Strengths,
		Improvements: a.Improvements,
	}, nil
}

// assess calls the capability under the grader's timeout and validates
// the payload. A panicking capability is reported as an error.
func (g essayGrader) assess(ctx context.Context, q Question) (a *model.EssayAssessment, err error) {
	if g.capability == nil {
		return nil, ErrNoCapability
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("essay grading capability panicked: %v", r)
		}
	}()

	a, err = g.capability.GradeEssay(ctx, model.EssayRequest{
		QuestionText:  q.Text,
		SubmittedText: q.Submitted.Value,
		CanonicalText: q.Canonical.Value,
		Language:      catalogFrom(ctx).Lang(),
	})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedAssessment)
	}
	if math.IsNaN(a.Score) || a.Score < 0 || a.Score > maxEssayScore {
		return nil, fmt.Errorf("%w: score %v outside [0, %v]", ErrMalformedAssessment, a.Score, maxEssayScore)
	}
	return a, nil
}

// exactMatchFallback is the deterministic path used when the AI is
// unavailable: trimmed, case-insensitive equality scores 1, anything else 0.
func exactMatchFallback(ctx context.Context, q Question) Outcome {
	match := NormalizeText(q.Submitted.Value) == NormalizeText(q.Canonical.Value)
	return Outcome{
		Score:    binary(match),
		Correct:  match,
		Feedback: catalogFrom(ctx).T("AIUnavailable"),
		Fallback: true,
	}
}
