package grading

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"time"

	"github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/model"
)

const (
	DefaultOrderingThreshold  = 0.8
	DefaultFillBlankThreshold = 0.5
	DefaultTextThreshold      = 0.5
	DefaultEssayTimeout       = 30 * time.Second
	DefaultConcurrency        = 4
)

// Option configures an Engine.
type Option func(*config)

type config struct {
	OrderingThreshold  float64
	FillBlankThreshold float64
	TextThreshold      float64
	EssayTimeout       time.Duration
	Concurrency        int
	Essay              model.EssayGrader
	Catalog            *i18n.Catalog
	Logger             *slog.Logger
	Extra              map[model.QuestionType]Grader
}

// WithEssayGrader injects the capability used for short_answer and essay.
// Without one, those types always take the exact-match fallback.
func WithEssayGrader(g model.EssayGrader) Option { return func(c *config) { c.Essay = g } }

func WithOrderingThreshold(t float64) Option  { return func(c *config) { c.OrderingThreshold = t } }
func WithFillBlankThreshold(t float64) Option { return func(c *config) { c.FillBlankThreshold = t } }
func WithTextThreshold(t float64) Option      { return func(c *config) { c.TextThreshold = t } }

// WithEssayTimeout bounds each capability call. Zero means no timeout
// beyond the caller's context.
func WithEssayTimeout(d time.Duration) Option { return func(c *config) { c.EssayTimeout = d } }

// WithConcurrency bounds how many questions GradeBatch grades at once.
func WithConcurrency(n int) Option { return func(c *config) { c.Concurrency = n } }

// WithCatalog sets the feedback language used when the context carries none.
func WithCatalog(cat *i18n.Catalog) Option { return func(c *config) { c.Catalog = cat } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.Logger = l } }

// WithGrader registers or replaces the grader for a question type.
func WithGrader(t model.QuestionType, g Grader) Option {
	return func(c *config) {
		if c.Extra == nil {
			c.Extra = make(map[model.QuestionType]Grader)
		}
		c.Extra[t] = g
	}
}

// Engine routes answers to the grader for their question type. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	graders     map[model.QuestionType]Grader
	catalog     *i18n.Catalog
	logger      *slog.Logger
	concurrency int
}

// New builds an Engine with the built-in graders installed.
func New(opts ...Option) *Engine {
	cfg := &config{
		OrderingThreshold:  DefaultOrderingThreshold,
		FillBlankThreshold: DefaultFillBlankThreshold,
		TextThreshold:      DefaultTextThreshold,
		EssayTimeout:       DefaultEssayTimeout,
		Concurrency:        DefaultConcurrency,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	essay := essayGrader{
		capability: cfg.Essay,
		threshold:  cfg.TextThreshold,
		timeout:    cfg.EssayTimeout,
		logger:     cfg.Logger,
	}
	graders := map[model.QuestionType]Grader{
		model.TypeMultipleChoice: exactGrader{},
		model.TypeTrueFalse:      exactGrader{},
		model.TypeMultipleAnswer: setGrader{},
		model.TypeOrdering:       orderingGrader{threshold: cfg.OrderingThreshold},
		model.TypeFillBlank:      fillBlankGrader{threshold: cfg.FillBlankThreshold},
		model.TypeShortAnswer:    essay,
		model.TypeEssay:          essay,
	}
	for t, g := range cfg.Extra {
		graders[t] = g
	}

	return &Engine{
		graders:     graders,
		catalog:     cfg.Catalog,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Supports reports whether t has a grader.
func (e *Engine) Supports(t model.QuestionType) bool {
	_, ok := e.graders[t]
	return ok
}

// Grade grades one answer. It never panics and never returns an error:
// unknown types, grader errors and grader panics all become zero-credit
// results with explanatory feedback.
func (e *Engine) Grade(ctx context.Context, req model.GradeRequest) (res model.GradingResult) {
	ctx = e.withCatalog(ctx)
	cat := catalogFrom(ctx)
	maxMarks := coerceMarks(req.MaxMarks)

	g, ok := e.graders[req.QuestionType]
	if !ok {
		return zeroCredit(maxMarks, cat.Td("UnsupportedType", map[string]any{"Type": string(req.QuestionType)}))
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("grader panicked",
				"question_type", req.QuestionType,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res = zeroCredit(maxMarks, cat.Td("GradingError", map[string]any{"Message": fmt.Sprint(r)}))
		}
	}()

	q := Question{
		Type:      req.QuestionType,
		Text:      req.QuestionText,
		Submitted: Normalize(req.SubmittedAnswer, g.Shape()),
		Canonical: Normalize(req.CanonicalAnswer, g.Shape()),
	}
	out, err := g.Grade(ctx, q)
	if err != nil {
		e.logger.Error("grading failed", "question_type", req.QuestionType, "error", err)
		return zeroCredit(maxMarks, cat.Td("GradingError", map[string]any{"Message": err.Error()}))
	}
	return compose(out, maxMarks)
}

func (e *Engine) withCatalog(ctx context.Context) context.Context {
	if e.catalog == nil || i18n.FromContext(ctx) != nil {
		return ctx
	}
	return i18n.WithCatalog(ctx, e.catalog)
}

// compose applies marks to an outcome, clamping both score and marks.
func compose(out Outcome, maxMarks float64) model.GradingResult {
	score := clamp(out.Score, 0, 1)
	return model.GradingResult{
		IsCorrect:     out.Correct,
		MarksObtained: clamp(maxMarks*score, 0, maxMarks),
		MaxMarks:      maxMarks,
		Score:         score,
		Feedback:      out.Feedback,
		Strengths:     out.Strengths,
		Improvements:  out.Improvements,
		AIFallback:    out.Fallback,
	}
}

func zeroCredit(maxMarks float64, feedback string) model.GradingResult {
	return model.GradingResult{MaxMarks: maxMarks, Feedback: feedback}
}

// coerceMarks maps negative and non-finite values to 0.
func coerceMarks(m float64) float64 {
	if math.IsNaN(m) || math.IsInf(m, 0) || m < 0 {
		return 0
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
