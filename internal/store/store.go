package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examgrader/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grading_runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		total_marks REAL NOT NULL DEFAULT 0,
		max_marks REAL NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS run_items (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question_type TEXT NOT NULL,
		question_text TEXT NOT NULL DEFAULT '',
		submitted_answer TEXT NOT NULL DEFAULT '',
		canonical_answer TEXT NOT NULL DEFAULT '',
		max_marks REAL NOT NULL DEFAULT 0,
		is_correct INTEGER NOT NULL DEFAULT 0,
		marks_obtained REAL NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		ai_fallback INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES grading_runs(id)
	);

	CREATE TABLE IF NOT EXISTS grader_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NewRun pairs batch requests with their results for storage.
// reqs and res.Results must be in the same order.
func NewRun(label string, reqs []model.GradeRequest, res model.BatchResult) model.GradingRun {
	run := model.GradingRun{
		Label:        label,
		TotalMarks:   res.TotalMarks,
		MaxMarks:     res.MaxMarks,
		CorrectCount: res.CorrectCount,
		Items:        make([]model.RunItem, 0, len(reqs)),
	}
	for i, req := range reqs {
		item := model.RunItem{
			Position:        i,
			QuestionType:    req.QuestionType,
			QuestionText:    req.QuestionText,
			SubmittedAnswer: answerText(req.SubmittedAnswer),
			CanonicalAnswer: answerText(req.CanonicalAnswer),
			MaxMarks:        req.MaxMarks,
		}
		if i < len(res.Results) {
			r := res.Results[i]
			item.MaxMarks = r.MaxMarks
			item.IsCorrect = r.IsCorrect
			item.MarksObtained = r.MarksObtained
			item.Feedback = r.Feedback
			item.AIFallback = r.AIFallback
		}
		run.Items = append(run.Items, item)
	}
	return run
}

// answerText stores strings as written and anything else as JSON.
func answerText(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return a
	case json.RawMessage:
		return string(a)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// SaveRun stores a run and its items in one transaction and returns the
// new run ID.
func (s *Store) SaveRun(run model.GradingRun) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.Exec(
		`INSERT INTO grading_runs (id, label, created_at, total_marks, max_marks, correct_count) VALUES (?, ?, ?, ?, ?, ?)`,
		id, run.Label, createdAt, run.TotalMarks, run.MaxMarks, run.CorrectCount,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, it := range run.Items {
		_, err := tx.Exec(
			`INSERT INTO run_items (run_id, position, question_type, question_text, submitted_answer, canonical_answer,
				max_marks, is_correct, marks_obtained, feedback, ai_fallback)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, it.Position, string(it.QuestionType), it.QuestionText, it.SubmittedAnswer, it.CanonicalAnswer,
			it.MaxMarks, it.IsCorrect, it.MarksObtained, it.Feedback, it.AIFallback,
		)
		if err != nil {
			return "", fmt.Errorf("insert item %d: %w", it.Position, err)
		}
	}

	return id, tx.Commit()
}

// GetRun returns a run with its items ordered by position.
func (s *Store) GetRun(id string) (model.GradingRun, error) {
	var run model.GradingRun
	err := s.db.QueryRow(
		`SELECT id, label, created_at, total_marks, max_marks, correct_count FROM grading_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Label, &run.CreatedAt, &run.TotalMarks, &run.MaxMarks, &run.CorrectCount)
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return run, err
	}

	items, err := s.runItems(id)
	if err != nil {
		return run, err
	}
	run.Items = items
	return run, nil
}

func (s *Store) runItems(runID string) ([]model.RunItem, error) {
	rows, err := s.db.Query(
		`SELECT position, question_type, question_text, submitted_answer, canonical_answer,
			max_marks, is_correct, marks_obtained, feedback, ai_fallback
		 FROM run_items WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.RunItem
	for rows.Next() {
		var it model.RunItem
		var qt string
		if err := rows.Scan(&it.Position, &qt, &it.QuestionText, &it.SubmittedAnswer, &it.CanonicalAnswer,
			&it.MaxMarks, &it.IsCorrect, &it.MarksObtained, &it.Feedback, &it.AIFallback); err != nil {
			return nil, err
		}
		it.QuestionType = model.QuestionType(qt)
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListRuns returns run summaries, newest first. A non-empty label filter
// matches labels containing it.
func (s *Store) ListRuns(label string) ([]model.GradingRun, error) {
	query := `SELECT id, label, created_at, total_marks, max_marks, correct_count FROM grading_runs`
	var args []any
	if label = strings.TrimSpace(label); label != "" {
		query += ` WHERE label LIKE ?`
		args = append(args, "%"+label+"%")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.GradingRun
	for rows.Next() {
		var run model.GradingRun
		if err := rows.Scan(&run.ID, &run.Label, &run.CreatedAt, &run.TotalMarks, &run.MaxMarks, &run.CorrectCount); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunCount returns the number of stored runs.
func (s *Store) RunCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM grading_runs`).Scan(&n)
	return n, err
}
