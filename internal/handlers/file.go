package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 单次请求最多上传的文件数
const maxUploadFiles = 20

type FileHandler struct {
	fileService explorer.FileService
}

func NewFileHandler(fileService explorer.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

type ArchiveRequest struct {
	FileIDs []uint64 `json:"fileIds" binding:"required,min=1"`
}

// Upload
// @Summary 上传文件
// @Description 以 multipart 表单上传一个或多个文件，字段名为 files
// @Tags 文件
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param files formData file true "文件"
// @Param isEncrypted formData bool false "客户端是否已加密"
// @Success 201 {object} xerr.Response "上传成功"
// @Failure 400 {object} xerr.Response "参数错误"
// @Failure 413 {object} xerr.Response "文件过大"
// @Router /api/upload/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		bindError(c, err)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "请选择要上传的文件")
		return
	}
	if len(headers) > maxUploadFiles {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "单次最多上传 "+strconv.Itoa(maxUploadFiles)+" 个文件")
		return
	}
	encrypted, _ := strconv.ParseBool(c.PostForm("isEncrypted"))

	inputs := make([]explorer.UploadInput, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			logger.Error("Upload: failed to open multipart file", zap.String("name", fh.Filename), zap.Error(err))
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "无法读取上传的文件")
			return
		}
		opened = append(opened, f)
		inputs = append(inputs, explorer.UploadInput{
			OriginalName: fh.Filename,
			Mimetype:     fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Reader:       f,
			IsEncrypted:  encrypted,
		})
	}

	files, err := h.fileService.Upload(c.Request.Context(), user.ID, inputs)
	if err != nil {
		xerr.ErrorFrom(c, err, "上传失败")
		return
	}
	xerr.Success(c, http.StatusCreated, "上传成功", files)
}

// List
// @Summary 我的文件
// @Tags 文件
// @Produce json
// @Security BearerAuth
// @Success 200 {object} xerr.Response "文件列表和已用空间"
// @Router /api/upload/files [get]
func (h *FileHandler) List(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	files, err := h.fileService.ListUserFiles(ctx, user.ID)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取文件列表失败")
		return
	}
	used, err := h.fileService.GetUserStorageUsed(ctx, user.ID)
	if err != nil {
		xerr.ErrorFrom(c, err, "获取存储用量失败")
		return
	}
	xerr.Success(c, http.StatusOK, "获取文件列表成功", gin.H{"files": files, "storageUsed": used})
}

// Download
// @Summary 下载文件
// @Tags 文件
// @Produce octet-stream
// @Security BearerAuth
// @Param fileId path int true "文件ID"
// @Success 200 {file} file "文件内容"
// @Failure 403 {object} xerr.Response "无权访问"
// @Failure 404 {object} xerr.Response "文件不存在"
// @Router /api/upload/download/{fileId} [get]
func (h *FileHandler) Download(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "fileId")
	if !ok {
		return
	}

	file, reader, err := h.fileService.Download(c.Request.Context(), user.ID, user.IsAdmin(), fileID)
	if err != nil {
		xerr.ErrorFrom(c, err, "下载失败")
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, file.Size, file.Mimetype, reader, map[string]string{
		"Content-Disposition": contentDisposition(file.OriginalName),
	})
}

// Delete
// @Summary 删除文件
// @Description 同时删除该文件的所有分享
// @Tags 文件
// @Produce json
// @Security BearerAuth
// @Param fileId path int true "文件ID"
// @Success 200 {object} xerr.Response "删除成功"
// @Failure 403 {object} xerr.Response "无权操作"
// @Failure 404 {object} xerr.Response "文件不存在"
// @Router /api/upload/files/{fileId} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	fileID, ok := parseIDParam(c, "fileId")
	if !ok {
		return
	}

	if err := h.fileService.Delete(c.Request.Context(), user.ID, user.IsAdmin(), fileID); err != nil {
		xerr.ErrorFrom(c, err, "删除文件失败")
		return
	}
	xerr.Success(c, http.StatusOK, "文件已删除", nil)
}

// Archive
// @Summary 打包下载
// @Description 把多个文件打包为 zip 下载
// @Tags 文件
// @Accept json
// @Produce application/zip
// @Security BearerAuth
// @Param request body ArchiveRequest true "文件ID列表"
// @Success 200 {file} file "zip 文件"
// @Failure 403 {object} xerr.Response "无权访问"
// @Failure 404 {object} xerr.Response "文件不存在"
// @Router /api/upload/archive [post]
func (h *FileHandler) Archive(c *gin.Context) {
	user, ok := utils.GetUserFromContext(c)
	if !ok {
		return
	}
	var req ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	w := &archiveWriter{c: c}
	err := h.fileService.DownloadArchive(c.Request.Context(), user.ID, user.IsAdmin(), req.FileIDs, w)
	if err == nil {
		return
	}
	if !w.started {
		xerr.ErrorFrom(c, err, "打包下载失败")
		return
	}
	// 已经开始输出 zip，只能中断连接
	logger.Error("Archive: stream interrupted", zap.Uint64("userID", user.ID), zap.Error(err))
	c.Abort()
}

// archiveWriter 第一次写入时才发送 zip 响应头，出错前仍可返回 JSON
type archiveWriter struct {
	c       *gin.Context
	started bool
}

func (w *archiveWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true
		w.c.Header("Content-Type", "application/zip")
		w.c.Header("Content-Disposition", contentDisposition("files.zip"))
		w.c.Status(http.StatusOK)
	}
	return w.c.Writer.Write(p)
}

var _ io.Writer = (*archiveWriter)(nil)
