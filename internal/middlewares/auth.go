package middlewares

import (
	"net/http"
	"strings"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/gin-gonic/gin"
)

// bearerToken 从 Authorization 头中取出 token，格式为 "Bearer <token>"
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware 校验 JWT 和 session，通过后把用户写入 Gin Context
func AuthMiddleware(sessions admin.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			xerr.AbortWithError(c, http.StatusUnauthorized, xerr.UnauthorizedCode, xerr.ErrUnauthorized.Error())
			return
		}

		user, err := sessions.ValidateToken(c.Request.Context(), token)
		if err != nil {
			xerr.ErrorFrom(c, err, "认证失败")
			c.Abort()
			return
		}

		c.Set(utils.ContextUserKey, user)
		c.Set(utils.ContextTokenKey, token)
		c.Next()
	}
}

// RequireAdmin 必须挂在 AuthMiddleware 之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := utils.GetUserFromContext(c)
		if !ok {
			return
		}
		if !user.IsAdmin() {
			xerr.AbortWithError(c, http.StatusForbidden, xerr.ForbiddenCode, "需要管理员权限")
			return
		}
		c.Next()
	}
}
