package model

import (
	"context"
	"time"
)

// QuestionType identifies how an answer is graded.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeMultipleAnswer QuestionType = "multiple_answer"
	TypeTrueFalse      QuestionType = "true_false"
	TypeFillBlank      QuestionType = "fill_blank"
	TypeOrdering       QuestionType = "ordering"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeEssay          QuestionType = "essay"
)

// QuestionTypes lists every supported question type in display order.
var QuestionTypes = []QuestionType{
	TypeMultipleChoice,
	TypeMultipleAnswer,
	TypeTrueFalse,
	TypeFillBlank,
	TypeOrdering,
	TypeShortAnswer,
	TypeEssay,
}

// GradeRequest is a single answer to grade.
// SubmittedAnswer and CanonicalAnswer may be a string, a list of strings,
// a JSON-encoded list, a comma-separated string, or nil.
type GradeRequest struct {
	QuestionType    QuestionType `json:"question_type"`
	QuestionText    string       `json:"question_text"`
	SubmittedAnswer any          `json:"submitted_answer"`
	CanonicalAnswer any          `json:"canonical_answer"`
	MaxMarks        float64      `json:"max_marks"`
}

// GradingResult is the uniform outcome of grading one answer.
type GradingResult struct {
	IsCorrect     bool     `json:"is_correct"`
	MarksObtained float64  `json:"marks_obtained"`
	MaxMarks      float64  `json:"max_marks"`
	Score         float64  `json:"score"`
	Feedback      string   `json:"feedback"`
	Strengths     []string `json:"strengths,omitempty"`
	Improvements  []string `json:"improvements,omitempty"`
	AIFallback    bool     `json:"ai_fallback,omitempty"`
}

// EssayRequest is what the essay grading capability receives.
type EssayRequest struct {
	QuestionText  string
	SubmittedText string
	CanonicalText string
	// Language is the BCP 47 tag feedback should be written in.
	Language string
}

// EssayAssessment is the capability's verdict. Score is on a 0-10 scale.
type EssayAssessment struct {
	Score        float64  `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// EssayGrader scores free-text answers, typically by calling an LLM.
type EssayGrader interface {
	GradeEssay(ctx context.Context, req EssayRequest) (*EssayAssessment, error)
}

// BatchRequest is a set of answers graded together, e.g. one exam submission.
type BatchRequest struct {
	Label string         `json:"label"`
	Items []GradeRequest `json:"items"`
}

// BatchResult aggregates per-question results in request order.
type BatchResult struct {
	RunID        string          `json:"run_id,omitempty"`
	Results      []GradingResult `json:"results"`
	TotalMarks   float64         `json:"total_marks"`
	MaxMarks     float64         `json:"max_marks"`
	Percentage   float64         `json:"percentage"`
	CorrectCount int             `json:"correct_count"`
}

// GradingRun is a stored batch with its inputs and results.
type GradingRun struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	CreatedAt    time.Time `json:"created_at"`
	TotalMarks   float64   `json:"total_marks"`
	MaxMarks     float64   `json:"max_marks"`
	CorrectCount int       `json:"correct_count"`
	Items        []RunItem `json:"items,omitempty"`
}

// RunItem is one graded answer inside a stored run.
type RunItem struct {
	Position        int          `json:"position"`
	QuestionType    QuestionType `json:"question_type"`
	QuestionText    string       `json:"question_text"`
	SubmittedAnswer string       `json:"submitted_answer"`
	CanonicalAnswer string       `json:"canonical_answer"`
	MaxMarks        float64      `json:"max_marks"`
	IsCorrect       bool         `json:"is_correct"`
	MarksObtained   float64      `json:"marks_obtained"`
	Feedback        string       `json:"feedback"`
	AIFallback      bool         `json:"ai_fallback"`
}
