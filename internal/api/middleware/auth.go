package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nourselim0/http-process-wrapper/internal/api/dto"
	"github.com/nourselim0/http-process-wrapper/internal/core/domain"
	"github.com/nourselim0/http-process-wrapper/internal/core/service"
)

const (
	AuthHeaderKey   = "Authorization"
	APIKeyHeaderKey = "X-API-Key"
	AuthContextKey  = "auth"
)

// AuthMiddleware authenticates requests. A request passes with either a
// valid Bearer JWT or, when a static apiKey is configured, a matching
// X-API-Key header.
func AuthMiddleware(authService *service.AuthService, apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Static API key path
		if apiKey != "" {
			if presented := c.GetHeader(APIKeyHeaderKey); presented != "" {
				if subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) == 1 {
					c.Next()
					return
				}
				c.JSON(http.StatusForbidden, dto.ErrorResponse{
					Error:   "Forbidden",
					Message: "Invalid API key",
					Code:    http.StatusForbidden,
				})
				c.Abort()
				return
			}
		}

		// Get authorization header
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Missing authorization header",
				Code:    http.StatusUnauthorized,
			})
			c.Abort()
			return
		}

		// Check if it's a Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid authorization header format. Expected 'Bearer <token>'",
				Code:    http.StatusUnauthorized,
			})
			c.Abort()
			return
		}

		token := parts[1]

		// Validate token
		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired token",
				Code:    http.StatusUnauthorized,
			})
			c.Abort()
			return
		}

		// Store claims in context
		c.Set(AuthContextKey, claims)

		c.Next()
	}
}

// RequireScope rejects token-authenticated requests whose claims do not
// cover the given scope. Requests that passed on the static API key carry
// no claims and are treated as fully privileged.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.Next()
			return
		}

		if !domain.ScopesAllow(claims.Scopes, scope) {
			c.JSON(http.StatusForbidden, dto.ErrorResponse{
				Error:   "Forbidden",
				Message: fmt.Sprintf("Token lacks required scope: %s", scope),
				Code:    http.StatusForbidden,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetAuthClaims retrieves auth claims from context
func GetAuthClaims(c *gin.Context) (*service.TokenClaims, bool) {
	claims, exists := c.Get(AuthContextKey)
	if !exists {
		return nil, false
	}

	tokenClaims, ok := claims.(*service.TokenClaims)
	return tokenClaims, ok
}
