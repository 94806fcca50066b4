package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/store"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade one answer and print the result as JSON",
		Example: `  examgrader grade --type multiple_answer --submitted "A, C" --canonical '["A","C"]' --max-marks 2
  examgrader grade --type essay --question "Explain X" --submitted "..." --canonical "..." --llm-provider none`,
		RunE: runGrade,
	}
	f := cmd.Flags()
	f.StringP("type", "t", "", "Question type (multiple_choice, multiple_answer, true_false, fill_blank, ordering, short_answer, essay)")
	f.StringP("question", "q", "", "Question text")
	f.StringP("submitted", "s", "", "Submitted answer (plain, comma-separated or a JSON list)")
	f.StringP("canonical", "c", "", "Canonical answer (plain, comma-separated or a JSON list)")
	f.Float64P("max-marks", "m", 1, "Maximum marks for the question")
	addEngineFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	setup, err := buildEngine(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer setup.close()

	res := setup.engine.Grade(cmd.Context(), model.GradeRequest{
		QuestionType:    model.QuestionType(v.GetString("type")),
		QuestionText:    v.GetString("question"),
		SubmittedAnswer: v.GetString("submitted"),
		CanonicalAnswer: v.GetString("canonical"),
		MaxMarks:        v.GetFloat64("max-marks"),
	})
	return writeJSON(cmd.OutOrStdout(), res)
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Grade a JSON file of answers concurrently",
		Long: `Grade every item of a JSON file shaped like {"label": "...", "items": [...]}
or a bare list of items. Results are printed in input order with totals.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}
	f := cmd.Flags()
	f.String("label", "", "Run label (overrides the file's label)")
	f.String("db", "", "SQLite database path to store the run (empty = don't store)")
	f.String("subject", "", "Subject name recorded with stored runs")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addEngineFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

// readBatch accepts either a BatchRequest object or a bare item list.
func readBatch(path string) (model.BatchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.BatchRequest{}, fmt.Errorf("read %s: %w", path, err)
	}
	var req model.BatchRequest
	if err := json.Unmarshal(data, &req); err == nil {
		return req, nil
	}
	if err := json.Unmarshal(data, &req.Items); err != nil {
		return model.BatchRequest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	req, err := readBatch(args[0])
	if err != nil {
		return err
	}
	if label := v.GetString("label"); label != "" {
		req.Label = label
	}

	setup, err := buildEngine(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer setup.close()

	res := setup.engine.GradeBatch(cmd.Context(), req.Items)
	slog.Info("graded batch", "items", len(req.Items), "total_marks", res.TotalMarks, "max_marks", res.MaxMarks)

	if path := v.GetString("db"); path != "" {
		db, err := store.New(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		info := setup.info
		info.Subject = v.GetString("subject")
		if err := db.SetGraderInfo(info); err != nil {
			return fmt.Errorf("record grader info: %w", err)
		}
		id, err := db.SaveRun(store.NewRun(req.Label, req.Items, res))
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		res.RunID = id
		slog.Info("stored run", "run_id", id, "db", path)
	}

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()
	return writeJSON(w, res)
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored grading runs",
		RunE:  runRuns,
	}
	f := cmd.Flags()
	f.String("db", "examgrader.db", "SQLite database path")
	f.String("label", "", "Only list runs whose label contains this text")
	addLogFlags(cmd)
	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if v.GetString("db") == "" {
		return errNoDB
	}
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(v.GetString("label"))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tCREATED\tMARKS\tCORRECT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g/%g\t%d\n",
			r.ID, r.Label, r.CreatedAt.Format("2006-01-02 15:04"), r.TotalMarks, r.MaxMarks, r.CorrectCount)
	}
	return tw.Flush()
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored grading runs as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "examgrader.db", "SQLite database path")
	f.StringSlice("id", nil, "Run IDs to export (repeatable, default all)")
	f.String("subject", "", "Subject name for output (overrides the stored one)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if v.GetString("db") == "" {
		return errNoDB
	}
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportRuns(v.GetStringSlice("id")...)
	if err != nil {
		return fmt.Errorf("export runs: %w", err)
	}
	if subject := v.GetString("subject"); subject != "" {
		export.Subject = subject
	}

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()
	if err := writeJSON(w, export); err != nil {
		return err
	}
	slog.Info("exported runs", "count", export.NumRuns)
	return nil
}
