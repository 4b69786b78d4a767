package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode"
)

// ValidateJSONContentType rejects request bodies that are not declared as
// JSON. Bodiless requests pass through so handlers report missing fields.
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			ct := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(ct)
			if err != nil || mediaType != "application/json" {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", ct),
					slog.String("method", r.Method),
				)
				writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SanitizeInputs rejects admin requests whose query values or path carry
// control characters, markup, or traversal sequences. Group names are
// directory cn values and may legitimately contain commas and spaces.
func SanitizeInputs(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for key, values := range r.URL.Query() {
				for _, val := range values {
					if bad, why := suspicious(val); bad {
						log.Warn("suspicious input detected",
							slog.String("path", r.URL.Path),
							slog.String("param", key),
							slog.String("reason", why),
						)
						writeError(w, http.StatusBadRequest, "invalid input")
						return
					}
				}
			}

			if bad, why := suspicious(r.URL.Path); bad || strings.Contains(r.URL.Path, "..") {
				if why == "" {
					why = "traversal"
				}
				log.Warn("suspicious path detected", slog.String("path", r.URL.Path), slog.String("reason", why))
				writeError(w, http.StatusBadRequest, "invalid path")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func suspicious(s string) (bool, string) {
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
			return true, "control character"
		case r == '<' || r == '>':
			return true, "markup"
		}
	}
	return false, ""
}
