package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/store"
)

const maxBodyBytes = 10 << 20

// Grader is the grading engine as seen by the HTTP layer.
type Grader interface {
	Grade(ctx context.Context, req model.GradeRequest) model.GradingResult
	GradeBatch(ctx context.Context, reqs []model.GradeRequest) model.BatchResult
	Supports(t model.QuestionType) bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	grader  Grader
	store   *store.Store
	catalog *i18n.Catalog
}

// New creates a new Handler. The store may be nil, in which case batches
// are not persisted and the run endpoints are not registered.
func New(g Grader, s *store.Store, cat *i18n.Catalog) (*Handler, error) {
	if g == nil {
		return nil, errors.New("grader is required")
	}
	if cat == nil {
		var err error
		if cat, err = i18n.New("en"); err != nil {
			return nil, err
		}
	}
	return &Handler{grader: g, store: s, catalog: cat}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(i18n.Middleware(h.catalog))
		r.Get("/question-types", h.handleQuestionTypes)
		r.Post("/grade", h.handleGrade)
		r.Post("/grade/batch", h.handleGradeBatch)
		if h.store != nil {
			r.Get("/runs", h.handleListRuns)
			r.Get("/runs/{runID}", h.handleGetRun)
			r.Get("/export", h.handleExport)
		}
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleQuestionTypes(w http.ResponseWriter, r *http.Request) {
	types := make([]model.QuestionType, 0, len(model.QuestionTypes))
	for _, t := range model.QuestionTypes {
		if h.grader.Supports(t) {
			types = append(types, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"question_types": types})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req model.GradeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res := h.grader.Grade(r.Context(), req)
	slog.Debug("graded answer",
		"question_type", req.QuestionType,
		"marks", res.MarksObtained,
		"max_marks", res.MaxMarks,
	)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGradeBatch(w http.ResponseWriter, r *http.Request) {
	var req model.BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res := h.grader.GradeBatch(r.Context(), req.Items)
	if h.store != nil {
		id, err := h.store.SaveRun(store.NewRun(req.Label, req.Items, res))
		if err != nil {
			slog.Error("failed to save grading run", "label", req.Label, "error", err)
		} else {
			res.RunID = id
		}
	}

	slog.Info("graded batch",
		"label", req.Label,
		"items", len(req.Items),
		"total_marks", res.TotalMarks,
		"max_marks", res.MaxMarks,
		"run_id", res.RunID,
	)
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
