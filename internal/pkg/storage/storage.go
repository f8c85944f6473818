package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/3Eeeecho/go-fileshare/internal/config"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("storage: object not found")

// PutObjectResult 封装上传对象后的结果
type PutObjectResult struct {
	Key  string
	Size int64 // 实际写入的字节数
	ETag string
}

// GetObjectResult 封装获取对象的结果
type GetObjectResult struct {
	Reader   io.ReadCloser // 文件内容读取器,调用方负责关闭
	Size     int64
	MimeType string
}

// StorageService 定义了存储服务需要实现的方法
// 上传的文件名由调用方生成，各实现只按 key 读写
type StorageService interface {
	// Name 返回存储类型，用于日志和指标
	Name() string
	// EnsureBucket 检查存储位置可用，必要时创建
	EnsureBucket(ctx context.Context) error
	// PutObject 上传对象，objectSize 为 -1 时表示大小未知
	PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error)
	// GetObject 获取对象内容，不存在时返回 ErrObjectNotFound
	GetObject(ctx context.Context, objectName string) (GetObjectResult, error)
	// RemoveObject 删除对象，对象已不存在时返回 nil
	RemoveObject(ctx context.Context, objectName string) error
}

// NewStorageService 按配置创建存储实现
func NewStorageService(cfg *config.Config) (StorageService, error) {
	switch cfg.Storage.Type {
	case "", "local":
		return NewLocalStorageService(cfg.Storage.LocalBasePath)
	case "minio":
		return NewMinIOStorageService(&cfg.MinIO)
	case "aliyun_oss":
		return NewAliyunOSSStorageService(&cfg.AliyunOSS)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
