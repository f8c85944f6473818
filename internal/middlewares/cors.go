package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS 只允许配置的前端地址跨域访问，origin 为 "*" 时放开所有来源
func CORS(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqOrigin := c.GetHeader("Origin")
		if reqOrigin != "" && (origin == "*" || reqOrigin == origin) {
			c.Header("Access-Control-Allow-Origin", reqOrigin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Expose-Headers", "Content-Disposition")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
