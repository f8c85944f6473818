package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewShareToken 生成 32 位十六进制的随机分享标识
func NewShareToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewShortID 生成 8 位十六进制随机串，用于演示账号邮箱等
func NewShortID() string {
	return NewShareToken()[:8]
}
