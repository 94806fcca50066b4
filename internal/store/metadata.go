package store

import (
	"database/sql"

	"github.com/pavelanni/examgrader/internal/model"
)

// SetMetadata upserts a key-value pair in the grader_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO grader_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM grader_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetGraderInfo records how runs in this database are graded.
func (s *Store) SetGraderInfo(info model.GraderInfo) error {
	pairs := []struct{ k, v string }{
		{"subject", info.Subject},
		{"prompt_variant", info.PromptVariant},
		{"provider", info.Provider},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetGraderInfo reads GraderInfo fields from metadata.
func (s *Store) GetGraderInfo() (model.GraderInfo, error) {
	var info model.GraderInfo
	var err error

	if info.Subject, err = s.GetMetadata("subject"); err != nil {
		return info, err
	}
	if info.PromptVariant, err = s.GetMetadata("prompt_variant"); err != nil {
		return info, err
	}
	if info.Provider, err = s.GetMetadata("provider"); err != nil {
		return info, err
	}
	return info, nil
}
