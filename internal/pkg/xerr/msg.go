package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams = errors.New("无效的请求参数")
	ErrFileTooLarge  = errors.New("上传文件过大，超出限制")

	// 认证与授权错误
	ErrUnauthorized       = errors.New("用户未授权")
	ErrTokenInvalid       = errors.New("认证 Token 无效或已过期")
	ErrInvalidCredentials = errors.New("邮箱或密码不正确")
	ErrEmailAlreadyExists = errors.New("邮箱已被注册")

	// 权限错误
	ErrForbidden              = errors.New("禁止访问")
	ErrPermissionDenied       = errors.New("您没有操作此资源的权限")
	ErrProtectedAccount       = errors.New("该账号受保护，不能修改或删除")
	ErrAccountDisabled        = errors.New("账号已被停用")
	ErrSharePasswordRequired  = errors.New("分享链接需要密码")
	ErrSharePasswordIncorrect = errors.New("分享链接密码不正确")

	// 资源未找到错误
	ErrUserNotFound  = errors.New("用户不存在")
	ErrFileNotFound  = errors.New("文件不存在")
	ErrShareNotFound = errors.New("分享链接不存在或已过期")

	// 资源失效
	ErrShareExpired      = errors.New("分享链接已过期")
	ErrShareLimitReached = errors.New("分享链接下载次数已达上限")

	ErrTooManyRequests = errors.New("请求过于频繁，请稍后再试")

	// 数据库与外部服务错误
	ErrDatabaseError = errors.New("数据库操作失败")
	ErrStorageError  = errors.New("存储服务操作失败")
)
