package grading

import (
	"context"
	"strings"
)

// orderingGrader awards credit for each position that matches the
// canonical sequence.
type orderingGrader struct {
	threshold float64
}

func (orderingGrader) Shape() Shape { return ShapeList }

func (g orderingGrader) Grade(ctx context.Context, q Question) (Outcome, error) {
	cat := catalogFrom(ctx)
	sub, want := q.Submitted.Items, q.Canonical.Items

	matches := countPositional(sub, want)
	var score float64
	switch {
	case len(want) == 0:
		score = 0
	case matches == len(want) && len(sub) != len(want):
		// Full credit needs the exact sequence, so surplus items after a
		// complete match count against it.
		score = ratio(matches, max(len(want), len(sub)))
	default:
		score = ratio(matches, len(want))
	}

	out := Outcome{Score: score, Correct: len(want) > 0 && score >= g.threshold}
	lines := []string{cat.Td("PositionsCorrect", map[string]any{"Correct": matches, "Total": len(want)})}
	if !out.Correct && len(want) > 0 {
		lines = append(lines, cat.Td("CorrectOrder", map[string]any{"Order": strings.Join(q.Canonical.Display, " → ")}))
	}
	out.Feedback = strings.Join(lines, "\n")
	return out, nil
}

// fillBlankGrader compares each blank independently; missing trailing
// blanks count as wrong. A canonical blank left empty is never matched.
type fillBlankGrader struct {
	threshold float64
}

func (fillBlankGrader) Shape() Shape { return ShapeList }

func (g fillBlankGrader) Grade(ctx context.Context, q Question) (Outcome, error) {
	cat := catalogFrom(ctx)
	sub, want := q.Submitted.Items, q.Canonical.Items
	if len(want) == 0 {
		return Outcome{Feedback: cat.T("NoBlanks")}, nil
	}

	lines := make([]string, 0, len(want))
	matches := 0
	for i, expected := range want {
		if expected != "" && i < len(sub) && sub[i] == expected {
			matches++
			lines = append(lines, cat.Td("BlankCorrect", map[string]any{"N": i + 1}))
			continue
		}
		lines = append(lines, cat.Td("BlankWrong", map[string]any{"N": i + 1, "Expected": q.Canonical.Display[i]}))
	}

	score := ratio(matches, len(want))
	return Outcome{
		Score:    score,
		Correct:  score >= g.threshold,
		Feedback: strings.Join(lines, "\n"),
	}, nil
}

// countPositional counts equal elements over the shorter of a and b.
func countPositional(a, b []string) int {
	n := min(len(a), len(b))
	matches := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return matches
}
