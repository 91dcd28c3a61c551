package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthUser represents an authenticated operator from JWT
type AuthUser struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// contextKey is used for storing user in context
type contextKey string

const (
	userContextKey contextKey = "authenticated_user"
)

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	Secret string
	// AdminRole is the role claim every request must carry. Empty accepts
	// any valid token.
	AdminRole string
	Logger    *zap.Logger
	SkipPaths []string // Paths to skip JWT validation
}

// roleOf prefers app_metadata.role over the top level role claim, which
// Supabase sets to "authenticated" for every user.
func roleOf(claims jwt.MapClaims) string {
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			return role
		}
	}
	role, _ := claims["role"].(string)
	return role
}

// JWTMiddleware creates a middleware that validates HS256 tokens and
// requires the admin role
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Skip JWT validation for certain paths
			path := c.Request().URL.Path
			for _, skipPath := range config.SkipPaths {
				if strings.HasPrefix(path, skipPath) {
					return next(c)
				}
			}

			// Extract token from Authorization header
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Authorization header required",
					"code":  "MISSING_AUTH_HEADER",
				})
			}

			// Check Bearer prefix
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid authorization header format. Expected: Bearer <token>",
					"code":  "INVALID_AUTH_FORMAT",
				})
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(config.Secret), nil
			})
			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Invalid or expired token",
					"code":  "INVALID_TOKEN",
				})
			}

			subject, _ := claims.GetSubject()
			email, _ := claims["email"].(string)
			authUser := &AuthUser{
				UserID: subject,
				Email:  email,
				Role:   roleOf(claims),
			}

			if config.AdminRole != "" && authUser.Role != config.AdminRole {
				config.Logger.Warn("Admin role required",
					zap.String("user_id", authUser.UserID),
					zap.String("role", authUser.Role),
					zap.String("path", path))
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "Admin role required",
					"code":  "FORBIDDEN",
				})
			}

			// Store user in request context
			ctx := context.WithValue(c.Request().Context(), userContextKey, authUser)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("user_id", authUser.UserID)

			config.Logger.Debug("Operator authenticated",
				zap.String("user_id", authUser.UserID),
				zap.String("email", email),
				zap.String("path", path))

			return next(c)
		}
	}
}

// GetUserFromContext extracts the authenticated user from the request context
func GetUserFromContext(c echo.Context) (*AuthUser, error) {
	user, ok := c.Request().Context().Value(userContextKey).(*AuthUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("no authenticated user found in context")
	}
	return user, nil
}

// RequireAuth is a helper function to get user or return error response
func RequireAuth(c echo.Context) (*AuthUser, error) {
	user, err := GetUserFromContext(c)
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{
			"error": "Authentication required",
			"code":  "AUTH_REQUIRED",
		})
	}
	return user, nil
}

// Actor names the caller for audit log fields.
func Actor(c echo.Context) string {
	user, err := GetUserFromContext(c)
	if err != nil {
		return "anonymous"
	}
	if user.Email != "" {
		return user.Email
	}
	return user.UserID
}
