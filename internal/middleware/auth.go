package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/model"
	"github.com/quocanhngo/lighttalk/pkg/auth"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID    = "user_id"
	ContextToken     = "token"
	ContextExpiresAt = "token_expires_at"
)

// TokenValidator verifies a bearer token
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// RevocationChecker reports whether a token was revoked before expiry
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware validates JWT tokens and injects the user id into context
func AuthMiddleware(validator TokenValidator, revoked RevocationChecker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, apperror.Unauthorized.WithMessage("Authorization header required. Use: Bearer <token>"))
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), tokenString)
			if err != nil {
				// fail closed
				logger.Error("token blacklist lookup failed", "error", err)
				abort(c, apperror.Unavailable.WithMessage("auth server error"))
				return
			}
			if isRevoked {
				abort(c, apperror.InvalidToken.WithMessage("token has been revoked"))
				return
			}
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			abort(c, apperror.InvalidToken.WithMessage("invalid or expired token"))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextToken, tokenString)
		if claims.ExpiresAt != nil {
			c.Set(ContextExpiresAt, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// UserID returns the authenticated user set by AuthMiddleware
func UserID(c *gin.Context) int64 {
	return c.GetInt64(ContextUserID)
}

// TokenExpiry returns when the presented token expires
func TokenExpiry(c *gin.Context) (time.Time, bool) {
	v, ok := c.Get(ContextExpiresAt)
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

func abort(c *gin.Context, err *apperror.Error) {
	c.AbortWithStatusJSON(err.Status, model.ErrorResponse{Error: err.Message, Code: err.Code})
}
