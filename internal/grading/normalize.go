package grading

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Shape is the internal form an answer is coerced into before grading.
type Shape int

const (
	// ShapeScalar is a single choice-key, compared case-insensitively.
	ShapeScalar Shape = iota
	// ShapeSet is an unordered, de-duplicated set of choice-keys.
	ShapeSet
	// ShapeList is an ordered sequence of free-text values.
	ShapeList
	// ShapeText is free text passed through as written.
	ShapeText
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeSet:
		return "set"
	case ShapeList:
		return "list"
	case ShapeText:
		return "text"
	default:
		return "shape(" + strconv.Itoa(int(s)) + ")"
	}
}

// Answer is a normalized answer.
//
// Scalar and text answers use Value; set and list answers use Items.
// Display keeps the answer as written (trimmed) for feedback messages.
type Answer struct {
	Shape   Shape
	Value   string
	Items   []string
	Display []string
}

// Empty reports whether the answer carries nothing to grade.
func (a Answer) Empty() bool {
	switch a.Shape {
	case ShapeSet, ShapeList:
		return len(a.Items) == 0
	default:
		return a.Value == ""
	}
}

// String renders the answer as written, joining list items with ", ".
func (a Answer) String() string {
	return strings.Join(a.Display, ", ")
}

// Normalize coerces a raw submitted or canonical value into shape.
// It never fails: unparseable or absent input yields an empty answer.
func Normalize(raw any, shape Shape) Answer {
	switch shape {
	case ShapeScalar:
		display := toScalar(raw)
		return Answer{Shape: shape, Value: NormalizeKey(display), Display: nonEmpty(display)}
	case ShapeSet:
		items := toItems(raw)
		seen := make(map[string]struct{}, len(items))
		keys := make([]string, 0, len(items))
		display := make([]string, 0, len(items))
		for _, it := range items {
			k := NormalizeKey(it)
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
			display = append(display, it)
		}
		sort.Strings(keys)
		return Answer{Shape: shape, Items: keys, Display: display}
	case ShapeList:
		items := toItems(raw)
		normalized := make([]string, len(items))
		for i, it := range items {
			normalized[i] = NormalizeText(it)
		}
		return Answer{Shape: shape, Items: normalized, Display: items}
	default:
		text := toText(raw)
		return Answer{Shape: ShapeText, Value: text, Display: nonEmpty(text)}
	}
}

// NormalizeKey canonicalizes a choice-key: trimmed, NFC, upper-cased.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Upper(language.Und).String(norm.NFC.String(s))
}

// NormalizeText canonicalizes free text for comparison: trimmed, NFC,
// lower-cased. Diacritics are kept, so "hanoi" and "Hà Nội" differ.
func NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// toItems turns any supported wire representation into trimmed strings.
func toItems(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return parseText(v)
	case []byte:
		return parseText(string(v))
	case json.RawMessage:
		return parseText(string(v))
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = strings.TrimSpace(s)
		}
		return trimEmptyTail(out)
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			out[i] = strings.TrimSpace(stringify(e))
		}
		return trimEmptyTail(out)
	case fmt.Stringer:
		return parseText(v.String())
	default:
		s := strings.TrimSpace(stringify(v))
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

// toScalar renders a single choice-key. Plain strings are kept as written;
// only JSON values and lists are unwrapped.
func toScalar(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return scalarText(v)
	case []byte:
		return scalarText(string(v))
	case json.RawMessage:
		return scalarText(string(v))
	case []string, []any:
		return strings.Join(toItems(v), ",")
	case fmt.Stringer:
		return scalarText(v.String())
	default:
		return strings.TrimSpace(stringify(v))
	}
}

func scalarText(s string) string {
	s = strings.TrimSpace(s)
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		switch d := decoded.(type) {
		case nil:
			return ""
		case string:
			return strings.TrimSpace(d)
		case float64, bool:
			return stringify(d)
		case []any:
			return strings.Join(toItems(d), ",")
		}
	}
	return s
}

// parseText tries JSON first and falls back to comma-splitting.
func parseText(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		switch d := decoded.(type) {
		case nil:
			return nil
		case []any:
			return toItems(d)
		case string:
			return parseText(d)
		case float64, bool:
			return []string{stringify(d)}
		}
	}

	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return trimEmptyTail(out)
}

func toText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return strings.TrimSpace(s)
		}
		return strings.Join(toItems(v), ", ")
	default:
		return strings.Join(toItems(v), ", ")
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

// trimEmptyTail drops trailing empty items left by "A, B," style input,
// and returns nil when nothing remains. Interior blanks keep their position.
func trimEmptyTail(items []string) []string {
	n := len(items)
	for n > 0 && items[n-1] == "" {
		n--
	}
	if n == 0 {
		return nil
	}
	return items[:n]
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
