package middleware

import (
	"net/http"
	"strings"

	"studyhub/internal/core/services"
	"studyhub/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUserNameKey = "user_name"

	tokenQueryParam = "token"
	tokenCookie     = "token"
)

// extractToken reads a bearer token from the Authorization header, the
// token query parameter, or the token cookie, in that order. Browsers
// cannot set headers on a WebSocket handshake, hence the fallbacks.
func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query(tokenQueryParam); token != "" {
		return token, true
	}
	if token, err := c.Cookie(tokenCookie); err == nil && token != "" {
		return token, true
	}
	return "", false
}

func setClaims(c *gin.Context, claims *services.Claims) {
	c.Set(ContextUserIDKey, claims.UserID)
	c.Set(ContextUserNameKey, claims.Name)
	c.Request = c.Request.WithContext(services.WithClaims(c.Request.Context(), claims))
}

// AuthMiddleware rejects requests without a valid token.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			abortWithAppError(c, errors.NewUnauthorizedError("authentication required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithAppError(c, errors.WrapError(err, errors.ErrCodeUnauthorized, err.Error(), http.StatusUnauthorized))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches claims when a valid token is present and
// lets every request through.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := extractToken(c); ok {
			if claims, err := authService.ValidateToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

func abortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}
