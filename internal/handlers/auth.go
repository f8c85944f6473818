package handlers

import (
	"net/http"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService admin.AuthService
}

func NewAuthHandler(authService admin.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 登录请求结构体
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register
// @Summary 用户注册
// @Description 使用邮箱和密码注册普通用户
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body RegisterRequest true "注册信息"
// @Success 201 {object} xerr.Response "注册成功"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 409 {object} xerr.Response "邮箱已存在"
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		xerr.ErrorFrom(c, err, "注册失败")
		return
	}
	xerr.Success(c, http.StatusCreated, "注册成功", gin.H{"user": user})
}

// Login
// @Summary 用户登录
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body LoginRequest true "登录信息"
// @Success 200 {object} xerr.Response "登录成功，返回token"
// @Failure 401 {object} xerr.Response "邮箱或密码错误"
// @Failure 403 {object} xerr.Response "账号已停用"
// @Failure 429 {object} xerr.Response "请求过于频繁"
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		xerr.ErrorFrom(c, err, "登录失败")
		return
	}
	xerr.Success(c, http.StatusOK, "登录成功", res)
}

// Demo
// @Summary 创建临时演示账号
// @Description 创建一个 30 分钟后失效的演示账号并返回 token
// @Tags 用户认证
// @Produce json
// @Success 201 {object} xerr.Response "演示账号"
// @Failure 403 {object} xerr.Response "演示账号未开放"
// @Router /api/auth/demo [post]
func (h *AuthHandler) Demo(c *gin.Context) {
	res, err := h.authService.ProvisionDemo(c.Request.Context())
	if err != nil {
		xerr.ErrorFrom(c, err, "创建演示账号失败")
		return
	}
	xerr.Success(c, http.StatusCreated, "演示账号已创建", res)
}

// Logout
// @Summary 退出登录
// @Tags 用户认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response "已退出"
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), utils.GetTokenFromContext(c)); err != nil {
		xerr.ErrorFrom(c, err, "退出登录失败")
		return
	}
	xerr.Success(c, http.StatusOK, "已退出登录", nil)
}

// Verify
// @Summary 校验 token
// @Tags 用户认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response "当前用户"
// @Failure 401 {object} xerr.Response "未认证"
// @Router /api/auth/verify [get]
func (h *AuthHandler) Verify(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	xerr.Success(c, http.StatusOK, "token 有效", gin.H{"user": user})
}
