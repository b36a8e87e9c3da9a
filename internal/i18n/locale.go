package i18n

import (
	"context"
	"net/http"
	"strings"
)

const DefaultLocale = "en"

var supportedLocales = map[string]struct{}{
	"en": {},
	"de": {},
}

type localeKey struct{}

// WithLocale stores a normalized locale on the context so asynchronous work
// (email rendering) keeps the caller's language.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, NormalizeLocale(locale))
}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultLocale
	}
	if val, ok := ctx.Value(localeKey{}).(string); ok && val != "" {
		return val
	}
	return DefaultLocale
}

// Middleware negotiates the locale from Accept-Language for every request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLocale(r.Context(), LocaleFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

func NormalizeLocale(header string) string {
	if strings.TrimSpace(header) == "" {
		return DefaultLocale
	}

	parts := strings.Split(header, ",")
	for _, part := range parts {
		lang := strings.TrimSpace(part)
		if lang == "" {
			continue
		}
		if idx := strings.Index(lang, ";"); idx >= 0 {
			lang = lang[:idx]
		}
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		if idx := strings.Index(lang, "-"); idx >= 0 {
			lang = lang[:idx]
		}
		if _, ok := supportedLocales[lang]; ok {
			return lang
		}
	}

	return DefaultLocale
}
