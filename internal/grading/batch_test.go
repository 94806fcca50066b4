package grading

import (
	"context"
	"errors"
	"testing"

	"github.com/pavelanni/examgrader/internal/model"
)

func TestGradeBatch(t *testing.T) {
	e := newTestEngine(t,
		WithEssayGrader(&fakeEssay{err: errors.New("unavailable")}),
		WithConcurrency(2),
	)

	reqs := []model.GradeRequest{
		{QuestionType: model.TypeMultipleChoice, SubmittedAnswer: "b", CanonicalAnswer: "B", MaxMarks: 2},
		{QuestionType: model.TypeOrdering, SubmittedAnswer: []string{"C", "A"}, CanonicalAnswer: []string{"C", "A", "B"}, MaxMarks: 3},
		{QuestionType: model.TypeEssay, QuestionText: "explain X", SubmittedAnswer: "answer text", CanonicalAnswer: "model answer", MaxMarks: 10},
	}

	got := e.GradeBatch(context.Background(), reqs)

	if len(got.Results) != len(reqs) {
		t.Fatalf("got %d results, want %d", len(got.Results), len(reqs))
	}
	if !approx(got.TotalMarks, 4) || !approx(got.MaxMarks, 15) {
		t.Errorf("totals = %v/%v, want 4/15", got.TotalMarks, got.MaxMarks)
	}
	if got.CorrectCount != 1 {
		t.Errorf("CorrectCount = %d, want 1", got.CorrectCount)
	}
	if !approx(got.Percentage, 4.0/15*100) {
		t.Errorf("Percentage = %v", got.Percentage)
	}
	for i, req := range reqs {
		if got.Results[i].MaxMarks != req.MaxMarks {
			t.Errorf("result %d has max marks %v, want %v (order not preserved)", i, got.Results[i].MaxMarks, req.MaxMarks)
		}
	}
	if !got.Results[2].AIFallback {
		t.Error("essay result should report the fallback")
	}
}

func TestGradeBatchMatchesSequential(t *testing.T) {
	e := newTestEngine(t, WithConcurrency(8))
	var reqs []model.GradeRequest
	for i := 0; i < 50; i++ {
		reqs = append(reqs,
			model.GradeRequest{QuestionType: model.TypeFillBlank, SubmittedAnswer: "a,x,c", CanonicalAnswer: "a,b,c", MaxMarks: float64(i%4 + 1)},
			model.GradeRequest{QuestionType: model.TypeMultipleAnswer, SubmittedAnswer: "A,B", CanonicalAnswer: "B,A", MaxMarks: 1},
		)
	}

	batch := e.GradeBatch(context.Background(), reqs)
	for i, req := range reqs {
		want := e.Grade(context.Background(), req)
		if batch.Results[i].MarksObtained != want.MarksObtained || batch.Results[i].Feedback != want.Feedback {
			t.Fatalf("result %d = %+v, want %+v", i, batch.Results[i], want)
		}
	}
}

func TestGradeBatchEmpty(t *testing.T) {
	e := newTestEngine(t)
	got := e.GradeBatch(context.Background(), nil)
	if got.Results == nil || len(got.Results) != 0 {
		t.Errorf("Results = %#v, want empty slice", got.Results)
	}
	if got.Percentage != 0 || got.TotalMarks != 0 {
		t.Errorf("empty batch totals = %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	results := []model.GradingResult{
		{IsCorrect: true, MarksObtained: 1, MaxMarks: 1},
		{MarksObtained: 0.5, MaxMarks: 2},
		{MaxMarks: 0},
	}
	got := Summarize(results)
	if got.TotalMarks != 1.5 || got.MaxMarks != 3 || got.CorrectCount != 1 {
		t.Errorf("Summarize = %+v", got)
	}
	if !approx(got.Percentage, 50) {
		t.Errorf("Percentage = %v, want 50", got.Percentage)
	}
}
