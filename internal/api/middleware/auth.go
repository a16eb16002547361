package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aqdesk/aqdesk/internal/api/models"
	"github.com/aqdesk/aqdesk/internal/auth"
)

type subjectKey struct{}

// AdminAuth returns middleware that requires a bearer token carrying the
// admin scope. A nil token service rejects every request with 403.
func AdminAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "admin endpoints are disabled"))
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			token := strings.TrimSpace(header[len(bearerPrefix):])
			if token == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := tokens.ValidateAdminToken(token)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrInsufficientScope):
				writeProblem(w, r, models.NewForbidden(GetRequestID(r.Context()), "token lacks the admin scope"))
				return
			case errors.Is(err, auth.ErrTokenExpired):
				writeUnauthorized(w, r, "token has expired")
				return
			default:
				writeUnauthorized(w, r, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject returns the authenticated token subject, or "" for anonymous requests.
func GetSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectKey{}).(string); ok {
		return sub
	}
	return ""
}

// writeUnauthorized writes the problem directly since the response package
// imports this one.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="aqdesk-admin"`)
	writeProblem(w, r, models.NewUnauthorized(GetRequestID(r.Context()), detail))
}

func writeProblem(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}
