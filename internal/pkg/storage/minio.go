package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type MinIOStorageService struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorageService 创建并返回一个 MinIOStorageService 实例
func NewMinIOStorageService(cfg *config.MinIOConfig) (*MinIOStorageService, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Error("初始化 MinIO 客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化 MinIO 客户端: %w", err)
	}

	logger.Info("MinIO 客户端初始化成功", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.BucketName))
	return &MinIOStorageService{client: minioClient, bucket: cfg.BucketName}, nil
}

func (s *MinIOStorageService) Name() string { return "minio" }

func (s *MinIOStorageService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查 MinIO 存储桶存在性失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// 并发启动时桶可能已被另一个实例创建
		exists, errBucketExists := s.client.BucketExists(ctx, s.bucket)
		if errBucketExists == nil && exists {
			return nil
		}
		return fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
	}
	logger.Info("MinIO 存储桶创建成功", zap.String("bucket", s.bucket))
	return nil
}

func (s *MinIOStorageService) PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error) {
	info, err := s.client.PutObject(ctx, s.bucket, objectName, reader, objectSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("MinIO 上传文件失败: %w", err)
	}
	return PutObjectResult{Key: info.Key, Size: info.Size, ETag: info.ETag}, nil
}

func (s *MinIOStorageService) GetObject(ctx context.Context, objectName string) (GetObjectResult, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return GetObjectResult{}, fmt.Errorf("MinIO 获取文件失败: %w", err)
	}
	// GetObject 是惰性的，Stat 才会真正发起请求
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return GetObjectResult{}, fmt.Errorf("%s: %w", objectName, ErrObjectNotFound)
		}
		return GetObjectResult{}, fmt.Errorf("获取 MinIO 对象信息失败: %w", err)
	}
	return GetObjectResult{Reader: obj, Size: stat.Size, MimeType: stat.ContentType}, nil
}

func (s *MinIOStorageService) RemoveObject(ctx context.Context, objectName string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("MinIO 删除文件失败: %w", err)
	}
	return nil
}
