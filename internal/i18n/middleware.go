package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware injects a catalog into every request context, honoring the
// request's Accept-Language header when it names a supported language.
func Middleware(c *Catalog) func(http.Handler) http.Handler {
	matcher := newMatcher(c)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cat := c
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				if lang, ok := matcher.match(accept); ok && lang != c.lang {
					cat = c.For(lang)
				}
			}
			next.ServeHTTP(w, r.WithContext(WithCatalog(r.Context(), cat)))
		})
	}
}

type langMatcher struct {
	m    language.Matcher
	tags []language.Tag
}

func newMatcher(c *Catalog) langMatcher {
	tags := c.Languages()
	return langMatcher{m: language.NewMatcher(tags), tags: tags}
}

func (lm langMatcher) match(accept string) (string, bool) {
	prefs, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(prefs) == 0 || len(lm.tags) == 0 {
		return "", false
	}
	_, idx, conf := lm.m.Match(prefs...)
	if conf == language.No || idx < 0 || idx >= len(lm.tags) {
		return "", false
	}
	return lm.tags[idx].String(), true
}
