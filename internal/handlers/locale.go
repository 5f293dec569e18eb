package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"github.com/sneakerhub/storefront/internal/platform/requestctx"
)

var supportedLocales = []language.Tag{
	language.MustParse("es-AR"),
	language.English,
}

// LocaleMiddleware negotiates the response locale from Accept-Language and stores it on the
// request context. Requests without a usable header get fallback.
func LocaleMiddleware(fallback string) func(http.Handler) http.Handler {
	fallback = strings.TrimSpace(fallback)
	matcher := language.NewMatcher(supportedLocales)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := fallback
			if header := strings.TrimSpace(r.Header.Get("Accept-Language")); header != "" {
				if tags, _, err := language.ParseAcceptLanguage(header); err == nil && len(tags) > 0 {
					_, index, confidence := matcher.Match(tags...)
					if confidence != language.No {
						locale = supportedLocales[index].String()
					}
				}
			}
			if locale == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(requestctx.WithLocale(r.Context(), locale)))
		})
	}
}
