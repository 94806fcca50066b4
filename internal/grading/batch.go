package grading

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/examgrader/internal/model"
)

// GradeBatch grades independent answers concurrently and returns the
// results in request order with exam-level totals. Totals are summed in
// request order, so they do not depend on scheduling.
func (e *Engine) GradeBatch(ctx context.Context, reqs []model.GradeRequest) model.BatchResult {
	results := make([]model.GradingResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = e.Grade(gctx, req)
			return nil
		})
	}
	_ = g.Wait()

	return Summarize(results)
}

// Summarize totals per-question results.
func Summarize(results []model.GradingResult) model.BatchResult {
	br := model.BatchResult{Results: results}
	for _, r := range results {
		br.TotalMarks += r.MarksObtained
		br.MaxMarks += r.MaxMarks
		if r.IsCorrect {
			br.CorrectCount++
		}
	}
	if br.MaxMarks > 0 {
		br.Percentage = br.TotalMarks / br.MaxMarks * 100
	}
	if br.Results == nil {
		br.Results = []model.GradingResult{}
	}
	return br
}
