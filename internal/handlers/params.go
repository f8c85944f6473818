package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
)

// parseIDParam 解析路径中的数字 ID，失败时直接返回 400
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "无效的 "+name)
		return 0, false
	}
	return id, true
}

// pageQuery 读取 page/pageSize 查询参数，非法值交给仓库层归一化
func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return page, pageSize
}

// contentDisposition 同时给出 ASCII 兜底文件名和 RFC 5987 编码的原始文件名
func contentDisposition(name string) string {
	fallback := make([]rune, 0, len(name))
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			r = '_'
		}
		fallback = append(fallback, r)
	}
	return `attachment; filename="` + string(fallback) + `"; filename*=UTF-8''` + url.PathEscape(name)
}

// bindError 参数绑定或校验失败统一返回 400
func bindError(c *gin.Context, err error) {
	xerr.Error(c, http.StatusBadRequest, xerr.ValidationFailedCode, "请求参数解析失败: "+err.Error())
}
