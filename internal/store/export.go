package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

// ExportRuns builds an export of the given runs with their items, or of
// every stored run when ids is empty.
func (s *Store) ExportRuns(ids ...string) (model.RunExport, error) {
	info, err := s.GetGraderInfo()
	if err != nil {
		return model.RunExport{}, fmt.Errorf("get grader info: %w", err)
	}

	if len(ids) == 0 {
		summaries, err := s.ListRuns("")
		if err != nil {
			return model.RunExport{}, fmt.Errorf("list runs: %w", err)
		}
		for _, r := range summaries {
			ids = append(ids, r.ID)
		}
	}

	runs := make([]model.GradingRun, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(id)
		if err != nil {
			return model.RunExport{}, fmt.Errorf("get run %s: %w", id, err)
		}
		runs = append(runs, run)
	}

	return model.RunExport{
		ExportedAt:    time.Now().UTC(),
		Subject:       info.Subject,
		PromptVariant: info.PromptVariant,
		NumRuns:       len(runs),
		Runs:          runs,
	}, nil
}
