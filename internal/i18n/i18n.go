package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var jsonUnmarshal = json.Unmarshal

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

// Catalog renders feedback messages in one language, falling back to the
// bundle's default language for missing entries.
type Catalog struct {
	bundle *i18n.Bundle
	lang   string
	loc    *i18n.Localizer
}

// New loads the embedded translation bundle with lang as the default language.
func New(lang string) (*Catalog, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", jsonUnmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	return &Catalog{
		bundle: bundle,
		lang:   tag.String(),
		loc:    i18n.NewLocalizer(bundle, tag.String()),
	}, nil
}

// MustNew is like New but panics on error. The embedded locales are
// known-good, so this only fails for an unparseable language tag.
func MustNew(lang string) *Catalog {
	c, err := New(lang)
	if err != nil {
		panic(err)
	}
	return c
}

// Lang returns the catalog's language tag.
func (c *Catalog) Lang() string {
	return c.lang
}

// Languages returns the tags that have a translation file.
func (c *Catalog) Languages() []language.Tag {
	return c.bundle.LanguageTags()
}

// For returns a catalog sharing the same bundle but preferring langs.
// Accept-Language style strings are accepted.
func (c *Catalog) For(langs ...string) *Catalog {
	return &Catalog{
		bundle: c.bundle,
		lang:   firstOr(langs, c.lang),
		loc:    i18n.NewLocalizer(c.bundle, append(langs, c.lang)...),
	}
}

// T translates a message by ID.
func (c *Catalog) T(msgID string) string {
	s, err := c.loc.Localize(&i18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Td translates a message by ID with template data.
func (c *Catalog) Td(msgID string, data map[string]any) string {
	s, err := c.loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// WithCatalog stores a catalog in the context.
func WithCatalog(ctx context.Context, c *Catalog) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the catalog stored in ctx, or nil.
func FromContext(ctx context.Context) *Catalog {
	c, _ := ctx.Value(ctxKey{}).(*Catalog)
	return c
}

func firstOr(s []string, fallback string) string {
	if len(s) > 0 && s[0] != "" {
		return s[0]
	}
	return fallback
}
