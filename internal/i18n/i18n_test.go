package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCatalog(t *testing.T, lang string) *Catalog {
	t.Helper()
	c, err := New(lang)
	if err != nil {
		t.Fatalf("New(%q): %v", lang, err)
	}
	return c
}

func TestTranslateEnglish(t *testing.T) {
	c := newCatalog(t, "en")

	if got := c.T("Correct"); got != "Correct" {
		t.Errorf("T(Correct) = %q, want 'Correct'", got)
	}
	if got := c.T("AIUnavailable"); got != "auto-graded, AI unavailable" {
		t.Errorf("T(AIUnavailable) = %q", got)
	}
}

func TestTranslateVietnamese(t *testing.T) {
	c := newCatalog(t, "vi")

	if got := c.T("Correct"); got != "Đúng!" {
		t.Errorf("T(Correct) = %q, want 'Đúng!'", got)
	}
	if got := c.T("NoAnswer"); got != "Chưa trả lời" {
		t.Errorf("T(NoAnswer) = %q, want 'Chưa trả lời'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	c := newCatalog(t, "en")

	got := c.Td("IncorrectAnswer", map[string]any{"Answer": "B"})
	if got != "Incorrect — correct answer is B" {
		t.Errorf("Td(IncorrectAnswer) = %q", got)
	}

	got = c.Td("PositionsCorrect", map[string]any{"Correct": 2, "Total": 3})
	if got != "2/3 positions correct" {
		t.Errorf("Td(PositionsCorrect) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	c := newCatalog(t, "en")

	if got := c.T("NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInvalidLanguage(t *testing.T) {
	if _, err := New("not a language!"); err == nil {
		t.Fatal("expected error for invalid language tag")
	}
}

func TestForSwitchesLanguage(t *testing.T) {
	en := newCatalog(t, "en")
	vi := en.For("vi")

	if got := vi.T("Incorrect"); got != "Sai" {
		t.Errorf("vi T(Incorrect) = %q, want 'Sai'", got)
	}
	if got := en.T("Incorrect"); got != "Incorrect" {
		t.Errorf("en catalog changed: T(Incorrect) = %q", got)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected nil catalog in empty context")
	}
	c := newCatalog(t, "en")
	if got := FromContext(WithCatalog(context.Background(), c)); got != c {
		t.Fatal("catalog not stored in context")
	}
}

func TestMiddleware(t *testing.T) {
	c := newCatalog(t, "en")

	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{"no header", "", "Correct"},
		{"vietnamese", "vi-VN,vi;q=0.9", "Đúng!"},
		{"english", "en-US", "Correct"},
		{"unsupported falls back", "de-DE", "Correct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = FromContext(r.Context()).T("Correct")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
