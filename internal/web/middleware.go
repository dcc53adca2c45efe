package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/erazemk/cargocheck/internal/store"
)

type webContextKey string

const languageKey webContextKey = "language"

// LanguageMiddleware loads the stored UI language into the request context.
// A storage failure falls back to the default language.
func LanguageMiddleware(docs store.Documents) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang, err := store.Language(r.Context(), docs)
			if err != nil {
				slog.Error("failed to load language setting", "error", err)
				lang = store.DefaultLanguage
			}
			ctx := context.WithValue(r.Context(), languageKey, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Language returns the UI language from the request context.
func Language(ctx context.Context) string {
	lang, _ := ctx.Value(languageKey).(string)
	if lang == "" {
		return store.DefaultLanguage
	}
	return lang
}
