package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	"go.uber.org/zap"
)

func testServer() *Server {
	return NewServer("billing",
		config.HTTPConfig{Host: "127.0.0.1", Port: 8080},
		config.JWTConfig{Secret: "test-secret", AdminRole: "admin"},
		zap.NewNop(),
		func(e *echo.Echo, requireAdmin echo.MiddlewareFunc) {
			e.POST("/webhook/:provider", func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]string{"status": "received", "message": c.Param("provider")})
			})
			e.GET("/admin/ping", func(c echo.Context) error {
				return c.String(http.StatusOK, "pong")
			}, requireAdmin)
		})
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestServer_Routes(t *testing.T) {
	h := testServer().Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "webhook is public", method: http.MethodPost, path: "/webhook/hotmart", wantStatus: http.StatusOK},
		{name: "admin without token", method: http.MethodGet, path: "/admin/ping", wantStatus: http.StatusUnauthorized},
		{name: "admin with user token", method: http.MethodGet, path: "/admin/ping", token: adminToken(t, "authenticated"), wantStatus: http.StatusForbidden},
		{name: "admin with admin token", method: http.MethodGet, path: "/admin/ping", token: adminToken(t, "admin"), wantStatus: http.StatusOK},
		{name: "unknown path", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestServer_HealthNamesService(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.JSONEq(t, `{"status":"healthy","service":"billing"}`, rec.Body.String())
}
