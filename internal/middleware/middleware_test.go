package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/pkg/auth"
	"github.com/quocanhngo/lighttalk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	return s.revoked[token], s.err
}

func newAuthRouter(revoked RevocationChecker) (*gin.Engine, *auth.JWTManager) {
	gin.SetMode(gin.TestMode)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	r := gin.New()
	r.Use(AuthMiddleware(jwtManager, revoked, logger.Discard()))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r, jwtManager
}

func get(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r, jwtManager := newAuthRouter(stubRevocations{revoked: map[string]bool{}})
	token, err := jwtManager.GenerateToken(7, "seoyeon")
	require.NoError(t, err)

	w := get(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())

	w = get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"A001"`)

	w = get(r, "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"A003"`)
}

func TestAuthMiddleware_Revocation(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.GenerateToken(7, "seoyeon")
	require.NoError(t, err)

	r, _ := newAuthRouter(stubRevocations{revoked: map[string]bool{token: true}})
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)

	r, _ = newAuthRouter(stubRevocations{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "Bearer "+token).Code)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)

	_, ok = BearerToken("abc")
	assert.False(t, ok)
}

func corsPreflight(origins []string, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware(origins))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSMiddleware(t *testing.T) {
	w := corsPreflight([]string{" https://app.example/ ", ""}, "https://app.example")
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = corsPreflight([]string{"https://app.example"}, "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = corsPreflight([]string{"*"}, "http://localhost:5173")
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
