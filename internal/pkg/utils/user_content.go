package utils

import (
	"net/http"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserKey  = "currentUser"
	ContextTokenKey = "token"
)

// GetUserFromContext 从 Gin 上下文中获取 AuthMiddleware 写入的用户
// 如果获取失败或类型不正确，会中止请求并返回错误
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		xerr.AbortWithError(c, http.StatusUnauthorized, xerr.UnauthorizedCode, "User not found in context")
		return nil, false
	}
	user, ok := value.(*models.User)
	if !ok || user == nil {
		xerr.AbortWithError(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "Invalid user type in context")
		return nil, false
	}
	return user, true
}

// GetUserIDFromContext 从 Gin 上下文中获取并验证用户ID
func GetUserIDFromContext(c *gin.Context) (uint64, bool) {
	user, ok := GetUserFromContext(c)
	if !ok {
		return 0, false
	}
	return user.ID, true
}

// GetTokenFromContext 返回当前请求携带的 bearer token
func GetTokenFromContext(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}
