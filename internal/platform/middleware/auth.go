package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"onboard/pkg/requestcontext"
)

// TokenValidator resolves a bearer token to an operator id.
type TokenValidator interface {
	Validate(tokenString string) (string, error)
}

// RequireOperator rejects requests without a valid bearer token and records the
// operator on the request context so audit entries are attributed to them.
func RequireOperator(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, logger, r, "Missing or invalid Authorization header")
				return
			}

			operator, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, logger, r, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithOperator(ctx, operator)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, logger *slog.Logger, r *http.Request, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body := `{"error":"unauthorized","error_description":"` + description + `"}`
	if _, err := w.Write([]byte(body)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response", "error", err)
	}
}
