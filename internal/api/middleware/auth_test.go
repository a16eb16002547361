package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqdesk/aqdesk/internal/api/middleware"
	"github.com/aqdesk/aqdesk/internal/auth"
)

func newTokenService() *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-signing-key",
		Issuer:     "aqdesk",
	})
}

func protected(tokens *auth.TokenService) http.Handler {
	return middleware.AdminAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(middleware.GetSubject(r.Context())))
	}))
}

func serveWithAuth(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/refresh", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuth_ValidToken(t *testing.T) {
	tokens := newTokenService()
	token, _, err := tokens.GenerateToken("ops@aqdesk", auth.AdminScope, time.Hour)
	require.NoError(t, err)

	rec := serveWithAuth(protected(tokens), "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@aqdesk", rec.Body.String())
}

func TestAdminAuth_CaseInsensitiveScheme(t *testing.T) {
	tokens := newTokenService()
	token, _, err := tokens.GenerateToken("ops", auth.AdminScope, time.Hour)
	require.NoError(t, err)

	rec := serveWithAuth(protected(tokens), "bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAuth_Rejections(t *testing.T) {
	tokens := newTokenService()
	readToken, _, err := tokens.GenerateToken("viewer", "read", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantDetail string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "invalid authorization header format"},
		{"just bearer", "Bearer", http.StatusUnauthorized, "invalid authorization header format"},
		{"empty bearer", "Bearer  ", http.StatusUnauthorized, "missing bearer token"},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, "invalid token"},
		{"wrong scope", "Bearer " + readToken, http.StatusForbidden, "token lacks the admin scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithAuth(protected(tokens), tt.header)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.wantDetail)
		})
	}
}

func TestAdminAuth_UnauthorizedSetsChallenge(t *testing.T) {
	rec := serveWithAuth(protected(newTokenService()), "")
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestAdminAuth_DisabledWithoutTokenService(t *testing.T) {
	rec := serveWithAuth(protected(nil), "Bearer anything")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin endpoints are disabled")
}

func TestGetSubject_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetSubject(req.Context()))
}
