package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/3Eeeecho/go-fileshare/internal/services/cleanup"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/gin-gonic/gin"
)

// CleanupRunner 手动触发清理任务
type CleanupRunner interface {
	Run(ctx context.Context, task cleanup.Task) *cleanup.Report
}

// AdminHandler 管理后台接口，路由层保证调用方是管理员
type AdminHandler struct {
	userService  admin.UserService
	statsService admin.StatsService
	fileService  explorer.FileService
	cleaner      CleanupRunner
}

func NewAdminHandler(userService admin.UserService, statsService admin.StatsService, fileService explorer.FileService, cleaner CleanupRunner) *AdminHandler {
	return &AdminHandler{
		userService:  userService,
		statsService: statsService,
		fileService:  fileService,
		cleaner:      cleaner,
	}
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// UpdateUserRequest 省略的字段保持不变
type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

// Stats
// @Summary 系统统计
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response "统计数据"
// @Failure 403 {object} xerr.Response "需要管理员权限"
// @Router /api/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.statsService.SystemStats(c.Request.Context())
	if err != nil {
		xerr.ErrorFrom(c, err, "获取统计数据失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取统计数据成功", stats)
}

// ListUsers
// @Summary 用户列表
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param search query string false "按邮箱搜索"
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} xerr.Response "用户列表"
// @Router /api/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, pageSize := pageQuery(c)
	users, total, err := h.userService.ListUsers(c.Request.Context(), c.Query("search"), page, pageSize)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取用户列表失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取用户列表成功", gin.H{"users": users, "total": total})
}

// CreateUser
// @Summary 创建用户
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "用户信息"
// @Success 201 {object} xerr.Response "创建成功"
// @Failure 409 {object} xerr.Response "邮箱已存在"
// @Router /api/admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.userService.CreateUser(c.Request.Context(), admin.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		xerr.ErrorFrom(c, err, "创建用户失败")
		return
	}
	xerr.Success(c, http.StatusCreated, "用户已创建", user)
}

// GetUser
// @Summary 用户详情
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} xerr.Response "用户"
// @Failure 404 {object} xerr.Response "用户不存在"
// @Router /api/admin/users/{id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.GetUser(c.Request.Context(), id)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取用户失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取用户成功", user)
}

// UpdateUser
// @Summary 修改用户
// @Description 只修改请求中出现的字段；领导账号不可修改
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body UpdateUserRequest true "要修改的字段"
// @Success 200 {object} xerr.Response "修改成功"
// @Failure 403 {object} xerr.Response "受保护账号"
// @Failure 404 {object} xerr.Response "用户不存在"
// @Router /api/admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), id, admin.UpdateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		xerr.ErrorFrom(c, err, "修改用户失败")
		return
	}
	xerr.Success(c, http.StatusOK, "用户已更新", user)
}

// DeleteUser
// @Summary 删除用户
// @Description 同时删除该用户的文件、分享和 session；领导账号和自己不可删除
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} xerr.Response "删除成功"
// @Failure 403 {object} xerr.Response "受保护账号"
// @Failure 404 {object} xerr.Response "用户不存在"
// @Router /api/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), actor.ID, id); err != nil {
		xerr.ErrorFrom(c, err, "删除用户失败")
		return
	}
	xerr.Success(c, http.StatusOK, "用户已删除", nil)
}

// UserStorage
// @Summary 用户存储用量
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} xerr.Response "存储用量"
// @Router /api/admin/users/{id}/storage [get]
func (h *AdminHandler) UserStorage(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	usage, err := h.userService.GetUserStorage(c.Request.Context(), id)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取存储用量失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取存储用量成功", usage)
}

// ListFiles
// @Summary 全部文件
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} xerr.Response "文件列表"
// @Router /api/admin/files [get]
func (h *AdminHandler) ListFiles(c *gin.Context) {
	page, pageSize := pageQuery(c)
	files, total, err := h.fileService.ListAllFiles(c.Request.Context(), page, pageSize)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取文件列表失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取文件列表成功", gin.H{"files": files, "total": total})
}

// DeleteFile
// @Summary 删除任意文件
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param fileId path int true "文件ID"
// @Success 200 {object} xerr.Response "删除成功"
// @Failure 404 {object} xerr.Response "文件不存在"
// @Router /api/admin/files/{fileId} [delete]
func (h *AdminHandler) DeleteFile(c *gin.Context) {
	actor, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "fileId")
	if !ok {
		return
	}
	if err := h.fileService.Delete(c.Request.Context(), actor.ID, true, fileID); err != nil {
		xerr.ErrorFrom(c, err, "删除文件失败")
		return
	}
	xerr.Success(c, http.StatusOK, "文件已删除", nil)
}

// Cleanup
// @Summary 手动清理
// @Tags 管理后台
// @Produce json
// @Security BearerAuth
// @Param task query string false "all | files | sessions | shares | demo"
// @Success 200 {object} xerr.Response "清理结果"
// @Failure 400 {object} xerr.Response "未知任务"
// @Router /api/admin/cleanup [post]
func (h *AdminHandler) Cleanup(c *gin.Context) {
	task, err := cleanup.ParseTask(c.Query("task"))
	if err != nil {
		if errors.Is(err, cleanup.ErrUnknownTask) {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		xerr.ErrorFrom(c, err, "清理失败")
		return
	}
	report := h.cleaner.Run(c.Request.Context(), task)
	xerr.Success(c, http.StatusOK, "清理完成", report)
}
