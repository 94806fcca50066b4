package grading

import (
	"context"
	"sync"

	"github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/model"
)

// Question is what a grader sees: both answers already normalized into
// the grader's shape, plus the question text for context.
type Question struct {
	Type      model.QuestionType
	Text      string
	Submitted Answer
	Canonical Answer
}

// Outcome is a grader's verdict before marks are applied.
// Score is the fraction of max marks earned, in [0, 1].
type Outcome struct {
	Score        float64
	Correct      bool
	Feedback     string
	Strengths    []string
	Improvements []string
	Fallback     bool
}

// Grader grades one question type.
type Grader interface {
	// Shape is the form both answers are normalized into before Grade.
	Shape() Shape
	Grade(ctx context.Context, q Question) (Outcome, error)
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     *i18n.Catalog
)

// catalogFrom returns the request's catalog, or the built-in English one.
func catalogFrom(ctx context.Context) *i18n.Catalog {
	if c := i18n.FromContext(ctx); c != nil {
		return c
	}
	defaultCatalogOnce.Do(func() {
		defaultCatalog = i18n.MustNew("en")
	})
	return defaultCatalog
}

func binary(correct bool) float64 {
	if correct {
		return 1
	}
	return 0
}

func ratio(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}
