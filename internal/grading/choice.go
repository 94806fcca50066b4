package grading

import (
	"context"
	"strings"
)

// exactGrader grades multiple_choice and true_false: one choice-key,
// all or nothing.
type exactGrader struct{}

func (exactGrader) Shape() Shape { return ShapeScalar }

func (exactGrader) Grade(ctx context.Context, q Question) (Outcome, error) {
	cat := catalogFrom(ctx)
	correct := !q.Canonical.Empty() && q.Submitted.Value == q.Canonical.Value
	if correct {
		return Outcome{Score: 1, Correct: true, Feedback: cat.T("Correct")}, nil
	}
	return Outcome{
		Feedback: cat.Td("IncorrectAnswer", map[string]any{"Answer": q.Canonical.String()}),
	}, nil
}

// setGrader grades multiple_answer by exact set equality. A correct
// subset earns nothing.
type setGrader struct{}

func (setGrader) Shape() Shape { return ShapeSet }

func (setGrader) Grade(ctx context.Context, q Question) (Outcome, error) {
	cat := catalogFrom(ctx)
	missing := difference(q.Canonical.Items, q.Submitted.Items)
	extra := difference(q.Submitted.Items, q.Canonical.Items)

	if !q.Canonical.Empty() && len(missing) == 0 && len(extra) == 0 {
		return Outcome{Score: 1, Correct: true, Feedback: cat.T("Correct")}, nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, cat.Td("MissingKeys", map[string]any{"Keys": strings.Join(missing, ", ")}))
	}
	if len(extra) > 0 {
		parts = append(parts, cat.Td("ExtraKeys", map[string]any{"Keys": strings.Join(extra, ", ")}))
	}
	if len(parts) == 0 {
		return Outcome{Feedback: cat.T("Incorrect")}, nil
	}
	return Outcome{
		Feedback: cat.Td("IncorrectDetail", map[string]any{"Detail": strings.Join(parts, "; ")}),
	}, nil
}

// difference returns a − b. Both inputs are sorted, so the result is too.
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, k := range b {
		in[k] = struct{}{}
	}
	var out []string
	for _, k := range a {
		if _, ok := in[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
