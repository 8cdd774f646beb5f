package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthEcho(apiKey string) *echo.Echo {
	e := echo.New()
	e.GET("/guarded", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, APIAuth(apiKey))
	return e
}

func TestAPIAuthAccepts(t *testing.T) {
	e := newAuthEcho("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Token", "secret-key")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAPIAuthRejects(t *testing.T) {
	e := newAuthEcho("secret-key")

	for _, token := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		if token != "" {
			req.Header.Set("Token", token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(RequestLogger(zap.NewNop()))
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}
