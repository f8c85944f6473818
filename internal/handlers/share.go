package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/gin-gonic/gin"
)

type ShareHandler struct {
	shareService   share.ShareService
	frontendOrigin string // 拼接分享链接
}

func NewShareHandler(shareService share.ShareService, frontendOrigin string) *ShareHandler {
	return &ShareHandler{
		shareService:   shareService,
		frontendOrigin: strings.TrimRight(frontendOrigin, "/"),
	}
}

type CreateShareRequest struct {
	FileID         uint64   `json:"fileId" binding:"required"`
	Password       *string  `json:"password"`
	MaxDownloads   *int64   `json:"maxDownloads"`
	ExpiresInHours *float64 `json:"expiresInHours"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
}

type DownloadShareRequest struct {
	Password string `json:"password"`
}

type UpdateShareRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// Create
// @Summary 创建分享链接
// @Description 为文件创建分享链接，可设置密码、下载次数上限和有效期(小时)
// @Tags 分享
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateShareRequest true "分享链接信息"
// @Success 201 {object} xerr.Response "分享链接创建成功"
// @Failure 400 {object} xerr.Response "请求参数无效"
// @Failure 403 {object} xerr.Response "无权操作"
// @Failure 404 {object} xerr.Response "文件未找到"
// @Router /api/share/create [post]
func (h *ShareHandler) Create(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	var req CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.shareService.CreateShare(c.Request.Context(), user.ID, user.IsAdmin(), share.CreateShareInput{
		FileID:         req.FileID,
		Password:       req.Password,
		MaxDownloads:   req.MaxDownloads,
		ExpiresInHours: req.ExpiresInHours,
		Title:          req.Title,
		Description:    req.Description,
	})
	if err != nil {
		xerr.ErrorFrom(c, err, "创建分享链接失败")
		return
	}
	xerr.Success(c, http.StatusCreated, "分享链接创建成功", gin.H{
		"share":    created,
		"shareUrl": h.frontendOrigin + "/share/" + created.Token,
	})
}

// ListMine
// @Summary 我的分享
// @Tags 分享
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} xerr.Response "分享列表"
// @Router /api/share/my [get]
func (h *ShareHandler) ListMine(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)

	shares, total, err := h.shareService.ListUserShares(c.Request.Context(), user.ID, page, pageSize)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取分享列表失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取分享列表成功", gin.H{"shares": shares, "total": total})
}

// Resolve
// @Summary 获取分享详情
// @Description 公开接口，不存在、已停用、已过期或次数用尽的分享都返回 404
// @Tags 分享
// @Produce json
// @Param token path string true "分享 token"
// @Success 200 {object} xerr.Response "分享详情"
// @Failure 404 {object} xerr.Response "分享链接不存在或已失效"
// @Router /api/share/{token} [get]
func (h *ShareHandler) Resolve(c *gin.Context) {
	view, err := h.shareService.ResolveShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		xerr.ErrorFrom(c, err, "获取分享详情失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取分享详情成功", view)
}

// Download
// @Summary 下载分享的文件
// @Description 公开接口，成功时下载次数加一
// @Tags 分享
// @Accept json
// @Produce octet-stream
// @Param token path string true "分享 token"
// @Param request body DownloadShareRequest false "分享密码"
// @Success 200 {file} file "文件内容"
// @Failure 403 {object} xerr.Response "需要密码或密码错误"
// @Failure 404 {object} xerr.Response "分享链接不存在"
// @Failure 410 {object} xerr.Response "分享已过期或下载次数已用完"
// @Router /api/share/{token}/download [post]
func (h *ShareHandler) Download(c *gin.Context) {
	var req DownloadShareRequest
	// 空 body (包括 chunked 的空 body) 视为未提供密码
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}

	file, reader, err := h.shareService.DownloadShared(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		xerr.ErrorFrom(c, err, "下载失败")
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, file.Size, file.Mimetype, reader, map[string]string{
		"Content-Disposition": contentDisposition(file.OriginalName),
	})
}

// Update
// @Summary 启用或停用分享
// @Tags 分享
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param shareId path int true "分享ID"
// @Param request body UpdateShareRequest true "是否启用"
// @Success 200 {object} xerr.Response "更新成功"
// @Failure 403 {object} xerr.Response "无权操作"
// @Failure 404 {object} xerr.Response "分享不存在"
// @Router /api/share/{shareId} [patch]
func (h *ShareHandler) Update(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	shareID, ok := parseIDParam(c, "shareId")
	if !ok {
		return
	}
	var req UpdateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updated, err := h.shareService.SetShareActive(c.Request.Context(), user.ID, user.IsAdmin(), shareID, *req.IsActive)
	if err != nil {
		xerr.ErrorFrom(c, err, "更新分享失败")
		return
	}
	xerr.Success(c, http.StatusOK, "分享已更新", updated)
}

// Delete
// @Summary 删除分享
// @Tags 分享
// @Produce json
// @Security BearerAuth
// @Param shareId path int true "分享ID"
// @Success 200 {object} xerr.Response "删除成功"
// @Failure 403 {object} xerr.Response "无权操作"
// @Failure 404 {object} xerr.Response "分享不存在"
// @Router /api/share/{shareId} [delete]
func (h *ShareHandler) Delete(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	shareID, ok := parseIDParam(c, "shareId")
	if !ok {
		return
	}

	if err := h.shareService.DeleteShare(c.Request.Context(), user.ID, user.IsAdmin(), shareID); err != nil {
		xerr.ErrorFrom(c, err, "删除分享失败")
		return
	}
	xerr.Success(c, http.StatusOK, "分享已删除", nil)
}
