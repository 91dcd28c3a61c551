package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func createJWT(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

func createValidJWT(t *testing.T, userID, email, role string) string {
	return createJWT(t, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}, testSecret)
}

func testConfig() JWTConfig {
	return JWTConfig{
		Secret:    testSecret,
		AdminRole: "admin",
		Logger:    zap.NewNop(),
		SkipPaths: []string{"/health"},
	}
}

func serve(config JWTConfig, path, authHeader string) (*httptest.ResponseRecorder, *AuthUser) {
	e := echo.New()
	var seen *AuthUser
	handler := JWTMiddleware(config)(func(c echo.Context) error {
		seen, _ = GetUserFromContext(c)
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	_ = handler(e.NewContext(req, rec))
	return rec, seen
}

func TestJWTMiddleware_SuccessfulAuthentication(t *testing.T) {
	token := createValidJWT(t, "550e8400-e29b-41d4-a716-446655440000", "ops@example.com", "admin")

	rec, user := serve(testConfig(), "/diagnostics/search", "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", user.UserID)
	assert.Equal(t, "ops@example.com", user.Email)
	assert.Equal(t, "admin", user.Role)
}

func TestJWTMiddleware_AppMetadataRole(t *testing.T) {
	token := createJWT(t, jwt.MapClaims{
		"sub":          "u1",
		"role":         "authenticated",
		"app_metadata": map[string]interface{}{"role": "admin"},
		"exp":          time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	rec, user := serve(testConfig(), "/admin/webhooks", "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, "admin", user.Role)
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := createJWT(t, jwt.MapClaims{
		"sub":  "u1",
		"role": "admin",
		"exp":  time.Now().Add(-time.Hour).Unix(),
	}, testSecret)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "role": "admin"})
	noneString, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantCode: "MISSING_AUTH_HEADER"},
		{name: "not bearer", header: "Token abc", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_AUTH_FORMAT"},
		{name: "garbage token", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "wrong secret", header: "Bearer " + createJWT(t, jwt.MapClaims{"sub": "u1", "role": "admin"}, "other"), wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "alg none", header: "Bearer " + noneString, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "not admin", header: "Bearer " + createValidJWT(t, "u2", "user@example.com", "authenticated"), wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, user := serve(testConfig(), "/admin/webhooks", tt.header)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
			assert.Nil(t, user)
		})
	}
}

func TestJWTMiddleware_SkipPaths(t *testing.T) {
	rec, user := serve(testConfig(), "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, user)
}

func TestJWTMiddleware_AnyRoleWhenUnset(t *testing.T) {
	config := testConfig()
	config.AdminRole = ""

	rec, user := serve(config, "/admin/webhooks", "Bearer "+createValidJWT(t, "u3", "", "authenticated"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, user)
	assert.Equal(t, "u3", user.UserID)
}

func TestRequireAuth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	user, err := RequireAuth(c)
	assert.Nil(t, user)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "anonymous", Actor(c))
}
