package middleware

import (
	"net/http"
	"strings"

	"github.com/english-site/english-site/internal/services"
	"github.com/gin-gonic/gin"
)

const (
	userIDKey       = "user_id"
	sessionTokenKey = "session_token"
)

// ExtractToken 支持Authorization: Bearer和cookie两种携带方式
func ExtractToken(c *gin.Context, cookieName string) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil {
			return token
		}
	}
	return ""
}

// SessionAuth 每个请求解析一次身份，匿名请求照常放行。
// 身份只挂在请求上下文里，不落全局状态。
func SessionAuth(sessions *services.SessionService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c, cookieName)
		if token != "" {
			userID, ok, err := sessions.Resolve(c.Request.Context(), token)
			if err == nil && ok {
				c.Set(userIDKey, userID.String())
				c.Set(sessionTokenKey, token)
			}
		}
		c.Next()
	}
}

// RequireAuth 变更类路由的认证门
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access unauthorized."})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func GetSessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}
