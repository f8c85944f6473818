package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode    = 40000 // 无效的请求参数
	ValidationFailedCode = 40001 // 参数验证失败
	FileTooLargeCode     = 40003 // 文件过大

	// --- 认证与授权错误系列 (401xx) ---
	UnauthorizedCode       = 40100 // 通用未授权
	TokenInvalidCode       = 40101 // Token 无效或过期
	InvalidCredentialsCode = 40102 // 邮箱或密码错误

	// --- 权限错误系列 (403xx) ---
	ForbiddenCode              = 40300 // 通用无权限
	PermissionDeniedCode       = 40301 // 权限不足 (细分)
	SharePasswordRequiredCode  = 40302 // 分享需要密码
	SharePasswordIncorrectCode = 40303 // 分享密码不正确
	ProtectedAccountCode       = 40304 // 受保护账号不可修改
	AccountDisabledCode        = 40305 // 账号已停用

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode      = 40400 // 通用资源未找到
	UserNotFoundCode  = 40401 // 用户不存在
	FileNotFoundCode  = 40402 // 文件不存在
	ShareNotFoundCode = 40404 // 分享链接不存在

	// --- 业务逻辑冲突系列 (409xx) ---
	EmailAlreadyExistsCode = 40901 // 邮箱已存在

	// --- 资源失效系列 (410xx) ---
	ShareExpiredCode      = 41000 // 分享已过期
	ShareLimitReachedCode = 41001 // 分享下载次数已用完

	// --- 限流 (429xx) ---
	TooManyRequestsCode = 42900

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	StorageErrorCode        = 50002 // 存储服务操作失败
)
