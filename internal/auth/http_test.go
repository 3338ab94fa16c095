// ABOUTME: Tests for the HTTP bearer-token middleware
// ABOUTME: Covers header and query-param tokens, rejection paths, and context propagation

package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, v *JWTVerifier) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ClientIDFromContext(r.Context())))
	})
	return HTTPAuthMiddleware(v, logger)(echo)
}

func TestMiddlewareAcceptsBearerHeader(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	handler := newTestHandler(t, v)

	token, err := v.Generate("client-abc", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/threads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-abc", rec.Body.String())
}

func TestMiddlewareAcceptsTokenQueryParam(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	handler := newTestHandler(t, v)

	token, err := v.Generate("client-abc", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/stream?client_id=client-abc&token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-abc", rec.Body.String())
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	handler := newTestHandler(t, v)

	req := httptest.NewRequest(http.MethodGet, "/api/threads", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing authorization"}`, rec.Body.String())
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	handler := newTestHandler(t, v)

	req := httptest.NewRequest(http.MethodGet, "/api/threads", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"malformed authorization header"}`, rec.Body.String())
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	handler := newTestHandler(t, v)

	token, err := v.Generate("client-abc", -time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/threads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"token expired"}`, rec.Body.String())
}

func TestMiddlewareRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTVerifier([]byte("secret-one"))
	v := NewJWTVerifier([]byte("secret-two"))
	handler := newTestHandler(t, v)

	token, err := issuer.Generate("client-abc", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/threads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
}

func TestClientIDFromContextWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ClientIDFromContext(req.Context()))
}
