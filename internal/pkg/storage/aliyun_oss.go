package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"
)

type AliyunOSSStorageService struct {
	client     *oss.Client
	bucketName string
}

// NewAliyunOSSStorageService 创建并返回一个 AliyunOSSStorageService 实例
func NewAliyunOSSStorageService(cfg *config.AliyunOSSConfig) (*AliyunOSSStorageService, error) {
	// OSS Endpoint 应该包含 http:// 或 https:// 前缀
	ossClient, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		logger.Error("初始化阿里云OSS客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化阿里云OSS客户端: %w", err)
	}
	logger.Info("阿里云OSS客户端初始化成功", zap.String("endpoint", cfg.Endpoint))
	return &AliyunOSSStorageService{client: ossClient, bucketName: cfg.BucketName}, nil
}

func (s *AliyunOSSStorageService) Name() string { return "aliyun_oss" }

func (s *AliyunOSSStorageService) EnsureBucket(ctx context.Context) error {
	found, err := s.client.IsBucketExist(s.bucketName)
	if err != nil {
		return fmt.Errorf("检查阿里云OSS存储桶存在性失败: %w", err)
	}
	if found {
		return nil
	}
	if err := s.client.CreateBucket(s.bucketName); err != nil {
		var ossErr oss.ServiceError
		if errors.As(err, &ossErr) && (ossErr.Code == "BucketAlreadyExists" || ossErr.Code == "BucketAlreadyOwnedByYou") {
			return nil
		}
		return fmt.Errorf("创建阿里云OSS存储桶失败: %w", err)
	}
	logger.Info("阿里云OSS存储桶创建成功", zap.String("bucket", s.bucketName))
	return nil
}

func (s *AliyunOSSStorageService) PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error) {
	bucket, err := s.client.Bucket(s.bucketName)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}

	// 统计实际写入的字节数，SDK 不返回对象大小
	counter := &countingReader{r: reader}
	if err := bucket.PutObject(objectName, counter, oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return PutObjectResult{}, fmt.Errorf("阿里云OSS上传文件失败: %w", err)
	}
	return PutObjectResult{Key: objectName, Size: counter.n}, nil
}

func (s *AliyunOSSStorageService) GetObject(ctx context.Context, objectName string) (GetObjectResult, error) {
	bucket, err := s.client.Bucket(s.bucketName)
	if err != nil {
		return GetObjectResult{}, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}

	props, err := bucket.GetObjectDetailedMeta(objectName, oss.WithContext(ctx))
	if err != nil {
		var ossErr oss.ServiceError
		if errors.As(err, &ossErr) && ossErr.StatusCode == 404 {
			return GetObjectResult{}, fmt.Errorf("%s: %w", objectName, ErrObjectNotFound)
		}
		return GetObjectResult{}, fmt.Errorf("获取OSS对象元数据失败: %w", err)
	}

	reader, err := bucket.GetObject(objectName, oss.WithContext(ctx))
	if err != nil {
		return GetObjectResult{}, fmt.Errorf("阿里云OSS获取文件失败: %w", err)
	}

	size, _ := strconv.ParseInt(props.Get(oss.HTTPHeaderContentLength), 10, 64)
	return GetObjectResult{
		Reader:   reader,
		Size:     size,
		MimeType: props.Get(oss.HTTPHeaderContentType),
	}, nil
}

// RemoveObject OSS 删除不存在的对象同样返回成功
func (s *AliyunOSSStorageService) RemoveObject(ctx context.Context, objectName string) error {
	bucket, err := s.client.Bucket(s.bucketName)
	if err != nil {
		return fmt.Errorf("获取OSS存储桶失败: %w", err)
	}
	if err := bucket.DeleteObject(objectName, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("阿里云OSS删除文件失败: %w", err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
