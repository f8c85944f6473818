package middlewares

import (
	"net/http"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/ratelimit"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

// KeyFunc 生成限流的 key
type KeyFunc func(c *gin.Context) string

// ByClientIP 按客户端 IP 限流
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByClientIPAndParam 按客户端 IP + 路由参数限流，例如分享 token
func ByClientIPAndParam(param string) KeyFunc {
	return func(c *gin.Context) string {
		return c.ClientIP() + ":" + c.Param(param)
	}
}

// RateLimit limiter 为 nil 时不限流
func RateLimit(limiter ratelimit.Limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow(c.Request.Context(), key(c)) {
			xerr.AbortWithError(c, http.StatusTooManyRequests, xerr.TooManyRequestsCode, xerr.ErrTooManyRequests.Error())
			return
		}
		c.Next()
	}
}
