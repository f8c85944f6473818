package middlewares

import (
	"net/http"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger 每个请求记录一行日志
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIP", c.ClientIP()),
		}
		if v, ok := c.Get(utils.ContextUserKey); ok {
			if u, ok := v.(*models.User); ok {
				fields = append(fields, zap.Uint64("userID", u.ID))
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// Recovery panic 时记录堆栈并返回 500
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"))
		xerr.AbortWithError(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, xerr.ErrInternalServer.Error())
	})
}
