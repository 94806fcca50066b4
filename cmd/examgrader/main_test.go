package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/examgrader/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadBatch(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantLabel string
		wantItems int
		wantErr   bool
	}{
		{"object", `{"label":"quiz","items":[{"question_type":"true_false","submitted_answer":"true","canonical_answer":"true","max_marks":1}]}`, "quiz", 1, false},
		{"bare list", `[{"question_type":"essay"},{"question_type":"ordering"}]`, "", 2, false},
		{"garbage", `not json`, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := readBatch(writeFile(t, "batch.json", tt.content))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("readBatch: %v", err)
			}
			if req.Label != tt.wantLabel || len(req.Items) != tt.wantItems {
				t.Errorf("readBatch = %+v", req)
			}
		})
	}
}

func TestBuildEngineWithoutProvider(t *testing.T) {
	cmd := gradeCmd()
	if err := cmd.Flags().Set("llm-provider", "none"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("lang", "vi"); err != nil {
		t.Fatal(err)
	}
	setup, err := buildEngine(context.Background(), viperForCmd(cmd))
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	defer setup.close()

	if setup.essay != nil || setup.info.Provider != "none" {
		t.Errorf("setup = %+v", setup.info)
	}
	res := setup.engine.Grade(context.Background(), model.GradeRequest{
		QuestionType: model.TypeMultipleChoice, SubmittedAnswer: "A", CanonicalAnswer: "B", MaxMarks: 1,
	})
	if !strings.HasPrefix(res.Feedback, "Sai") {
		t.Errorf("Feedback = %q, want Vietnamese", res.Feedback)
	}
}

func TestBuildEngineUnknownProvider(t *testing.T) {
	cmd := gradeCmd()
	_ = cmd.Flags().Set("llm-provider", "carrier-pigeon")
	if _, err := buildEngine(context.Background(), viperForCmd(cmd)); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestGradeCommand(t *testing.T) {
	cmd := gradeCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--type", "multiple_answer",
		"--submitted", "c, a",
		"--canonical", `["A","C"]`,
		"--max-marks", "2",
		"--llm-provider", "none",
		"--log-level", "error",
	})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("grade: %v", err)
	}
	var res model.GradingResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if !res.IsCorrect || res.MarksObtained != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestViperReadsConfigFromWorkingDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "examgrader.yaml"), []byte("lang: vi\nconcurrency: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	v := viperForCmd(gradeCmd())
	if got := v.ConfigFileUsed(); got != filepath.Join(dir, "examgrader.yaml") {
		t.Errorf("ConfigFileUsed = %q", got)
	}
	if v.GetString("lang") != "vi" || v.GetInt("concurrency") != 3 {
		t.Errorf("lang = %q, concurrency = %d", v.GetString("lang"), v.GetInt("concurrency"))
	}
}
