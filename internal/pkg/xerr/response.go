package xerr

import (
	"errors"
	"net/http"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type mapping struct {
	target error
	status int
	code   int
}

// 顺序即优先级：越具体的错误越靠前
var mappings = []mapping{
	{ErrInvalidParams, http.StatusBadRequest, InvalidParamsCode},
	{ErrFileTooLarge, http.StatusRequestEntityTooLarge, FileTooLargeCode},
	{ErrUnauthorized, http.StatusUnauthorized, UnauthorizedCode},
	{ErrTokenInvalid, http.StatusUnauthorized, TokenInvalidCode},
	{ErrInvalidCredentials, http.StatusUnauthorized, InvalidCredentialsCode},
	{ErrProtectedAccount, http.StatusForbidden, ProtectedAccountCode},
	{ErrAccountDisabled, http.StatusForbidden, AccountDisabledCode},
	{ErrSharePasswordRequired, http.StatusForbidden, SharePasswordRequiredCode},
	{ErrSharePasswordIncorrect, http.StatusForbidden, SharePasswordIncorrectCode},
	{ErrPermissionDenied, http.StatusForbidden, PermissionDeniedCode},
	{ErrForbidden, http.StatusForbidden, ForbiddenCode},
	{ErrUserNotFound, http.StatusNotFound, UserNotFoundCode},
	{ErrFileNotFound, http.StatusNotFound, FileNotFoundCode},
	{ErrShareNotFound, http.StatusNotFound, ShareNotFoundCode},
	{ErrEmailAlreadyExists, http.StatusConflict, EmailAlreadyExistsCode},
	{ErrShareExpired, http.StatusGone, ShareExpiredCode},
	{ErrShareLimitReached, http.StatusGone, ShareLimitReachedCode},
	{ErrTooManyRequests, http.StatusTooManyRequests, TooManyRequestsCode},
	{ErrDatabaseError, http.StatusInternalServerError, DatabaseErrorCode},
	{ErrStorageError, http.StatusInternalServerError, StorageErrorCode},
}

// Resolve 把任意错误映射为 (HTTP 状态码, 业务码, 是否为已知错误)
func Resolve(err error) (int, int, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, InternalServerErrorCode, false
}

// Response 是通用 JSON 响应结构
type Response struct {
	Code    int    `json:"code"`    // 业务状态码
	Message string `json:"message"` // 消息
	Data    any    `json:"data"`    // 响应数据
}

// JSONResponse 发送标准 JSON 响应
func JSONResponse(c *gin.Context, httpStatus int, code int, message string, data any) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success 成功响应
func Success(c *gin.Context, httpStatus int, message string, data any) {
	JSONResponse(c, httpStatus, SuccessCode, message, data)
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	JSONResponse(c, httpStatus, code, message, nil)
}

// ErrorFrom 根据错误类型自动选择状态码和业务码
// 未知错误只返回 fallback 文案，不把内部细节暴露给调用方
// 5xx 的原始错误写入 c.Errors 和错误日志
func ErrorFrom(c *gin.Context, err error, fallback string) {
	status, code, known := Resolve(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.Error(fallback, zap.String("route", c.FullPath()), zap.Error(err))
	}
	if !known {
		Error(c, status, code, fallback)
		return
	}
	Error(c, status, code, publicMessage(err))
}

// publicMessage 返回被包裹的哨兵错误文案，避免把 %w 链上的内部描述带给客户端
func publicMessage(err error) string {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m.target.Error()
		}
	}
	return err.Error()
}

// AbortWithError 终止请求并发送错误响应
func AbortWithError(c *gin.Context, httpStatus int, code int, message string) {
	Error(c, httpStatus, code, message)
	c.Abort() // 终止后续的 HandlerFunc
}
