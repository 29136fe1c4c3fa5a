package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsight/backend/internal/infrastructure/auth"
	"github.com/shopsight/backend/internal/infrastructure/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWTService() *auth.JWTService {
	cfg := config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "test-issuer",
	}
	return auth.NewJWTService(cfg)
}

func newProtectedRouter(svc *auth.JWTService) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/api/v1/exports", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": GetJWTSubject(c)})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	router := newProtectedRouter(svc)

	issued, err := svc.Issue("ops-dashboard")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/exports", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+issued.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ops-dashboard")
}

func TestJWTAuthMiddleware_MissingHeader(t *testing.T) {
	router := newProtectedRouter(newTestJWTService())

	req := httptest.NewRequest("GET", "/api/v1/exports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestJWTAuthMiddleware_MalformedHeader(t *testing.T) {
	svc := newTestJWTService()
	router := newProtectedRouter(svc)

	issued, err := svc.Issue("ops-dashboard")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/exports", nil)
	req.Header.Set(AuthHeaderKey, "Token "+issued.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthMiddleware_ExpiredToken(t *testing.T) {
	expiredSvc := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: -time.Minute,
		Issuer:                "test-issuer",
	})
	router := newProtectedRouter(newTestJWTService())

	issued, err := expiredSvc.Issue("ops-dashboard")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/exports", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+issued.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	router := newProtectedRouter(newTestJWTService())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_CustomSkipPrefix(t *testing.T) {
	svc := newTestJWTService()
	cfg := DefaultJWTConfig(svc)
	cfg.SkipPathPrefixes = []string{"/public"}

	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/public/status", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/public/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthMiddleware_OnErrorCallback(t *testing.T) {
	svc := newTestJWTService()
	cfg := DefaultJWTConfig(svc)
	var capturedErr error
	cfg.OnError = func(c *gin.Context, err error) {
		capturedErr = err
		c.AbortWithStatus(http.StatusTeapot)
	}

	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/api/v1/exports", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/api/v1/exports", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.ErrorIs(t, capturedErr, auth.ErrInvalidToken)
}

func TestGetJWTClaims(t *testing.T) {
	svc := newTestJWTService()

	var claims *auth.Claims
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/api/v1/exports", func(c *gin.Context) {
		claims = GetJWTClaims(c)
		c.String(http.StatusOK, "ok")
	})

	issued, err := svc.Issue("ci-bot", "exports:read")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/exports", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+issued.Token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "ci-bot", claims.Subject)
	assert.Equal(t, []string{"exports:read"}, claims.Scopes)
}

func TestGetJWTSubject_NotFound(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetJWTSubject(c))
}

func TestRequireScope(t *testing.T) {
	svc := newTestJWTService()

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/api/v1/shops", RequireScope("shops:write"), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	t.Run("scope granted", func(t *testing.T) {
		issued, err := svc.Issue("ops-dashboard", "shops:write")
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/v1/shops", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issued.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("scope missing", func(t *testing.T) {
		issued, err := svc.Issue("ci-bot", "exports:read")
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/v1/shops", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+issued.Token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})
}
