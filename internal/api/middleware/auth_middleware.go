package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pixelCV/internal/auth"
)

// UserIDKey 是上下文中 owner id 的键，值为 string。
const UserIDKey = "userID"

// TokenVerifier 校验访问令牌并返回 owner id，由 auth.Verifier 实现。
type TokenVerifier interface {
	Verify(token string) (string, *auth.Claims, error)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// BearerToken 从 Authorization 头中取出令牌。
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware 校验访问令牌并将 owner id 注入上下文。
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		ownerID, _, err := verifier.Verify(rawToken)
		if err != nil {
			LoggerFromContext(c).Debug("token rejected", "error", err)
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, ownerID)
		c.Next()
	}
}

// GetUserID 从上下文中取出 owner id。
func GetUserID(c *gin.Context) (string, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}
