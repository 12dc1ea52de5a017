package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "aegis/internal/errors"
)

// subjectKey is the context key for the authenticated subject.
type subjectKey struct{}

// Subject returns the authenticated subject from the context, or "".
func Subject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}

// Middleware gates routes behind bearer-token verification. When disabled
// (dev mode) it passes requests through unchanged.
func Middleware(authority *TokenAuthority, enabled bool, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				apperrors.WriteError(w, apperrors.ErrUnauthorized)
				return
			}

			subject, err := authority.Verify(token)
			if err != nil {
				logger.WarnContext(r.Context(), "token rejected",
					slog.String("reason", err.Error()),
					slog.String("path", r.URL.Path))
				apperrors.WriteError(w, apperrors.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
