package middleware

import (
	"context"
	"net/http"
	"strings"

	"roombook/pkg/auth"
	"roombook/pkg/logger"
)

const RequesterKey contextKey = "requester"

// Authentication validates the Bearer token and stores the resulting
// Requester in the request context. Handlers read it with RequesterFrom.
func Authentication(tokens *auth.TokenService, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractBearerToken(r)
			if tokenStr == "" {
				rejectUnauthenticated(w, log, r, "missing bearer token")
				return
			}

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				rejectUnauthenticated(w, log, r, "invalid bearer token")
				return
			}

			requester := auth.Requester{
				UserID: claims.UserID,
				Role:   claims.Role,
			}
			ctx := context.WithValue(r.Context(), RequesterKey, requester)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequesterFrom(ctx context.Context) (auth.Requester, bool) {
	requester, ok := ctx.Value(RequesterKey).(auth.Requester)
	return requester, ok
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func rejectUnauthenticated(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Unauthenticated request rejected",
		"request_id", RequestID(r.Context()),
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Authentication required"}`))
}
