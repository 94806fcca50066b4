package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/examgrader/internal/model"
)

// SystemMessage is sent ahead of every essay grading prompt.
const SystemMessage = "You are an expert teacher. Grade fairly and provide constructive feedback. Return valid JSON only."

const maxAnswerRunes = 10000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

//go:embed templates/*.txt
var embedded embed.FS

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict demands every key point for full marks.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient rewards the main idea.
	PromptLenient PromptVariant = "lenient"
)

// Variants lists the supported variants.
var Variants = []PromptVariant{PromptStrict, PromptStandard, PromptLenient}

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce       sync.Once
	loadErr        error
	essayTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// EssayData holds template data for essay prompts.
type EssayData struct {
	QuestionText  string
	CanonicalText string
	Answer        string
	Language      string
}

// Load parses essay_<variant>.txt templates from fsys. Only the first
// call has any effect; later calls return the first call's error.
// Call it before grading to override the built-in templates.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		tmpls := make(map[PromptVariant]*template.Template, len(Variants))
		for _, v := range Variants {
			name := "essay_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			tmpls[v] = tmpl
		}
		essayTemplates = tmpls
	})
	return loadErr
}

// Builtin returns the templates compiled into the binary.
func Builtin() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// BuildEssayPrompt renders the essay grading prompt for variant, loading
// the built-in templates if none were loaded yet.
func BuildEssayPrompt(variant PromptVariant, req model.EssayRequest) (string, error) {
	if err := Load(Builtin()); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := essayTemplates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := EssayData{
		QuestionText:  strings.TrimSpace(req.QuestionText),
		CanonicalText: sanitize(req.CanonicalText),
		Answer:        sanitizeAnswer(req.SubmittedText),
		Language:      req.Language,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitize(s string) string {
	s = studentAnswerRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func sanitizeAnswer(answer string) string {
	answer = sanitize(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
