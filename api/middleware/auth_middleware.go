// api/middleware/auth_middleware.go
package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-cms/config"
	"github.com/Annany2002/nebula-cms/internal/auth"
	"github.com/Annany2002/nebula-cms/internal/logger"
)

var (
	customLog = logger.NewLogger()
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "userId"

// AuthMiddleware requires a valid "Bearer <jwt>" header and stores the user
// id under UserIDKey. Rejections are answered here with the same body the
// ErrorHandler would produce, so the middleware also works on its own.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authenticate(c.GetHeader("Authorization"), cfg.JWTSecret)
		if err != nil {
			customLog.Printf("AuthMiddleware: Rejected %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			_ = c.Error(err)
			status, msg := statusFor(err)
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func authenticate(header, secret string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: authorization header required", auth.ErrUnauthorized)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: authorization header format must be Bearer {token}", auth.ErrUnauthorized)
	}
	return auth.ValidateJWT(strings.TrimSpace(token), secret)
}
