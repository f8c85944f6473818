package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorageService 把对象保存在本地目录
// 写入流程: 临时文件 -> 写入 -> fsync -> rename，失败时清理临时文件
type LocalStorageService struct {
	baseDir string
}

func NewLocalStorageService(baseDir string) (*LocalStorageService, error) {
	if baseDir == "" {
		return nil, errors.New("local storage base path is empty")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("创建本地存储目录 %s 失败: %w", baseDir, err)
	}
	return &LocalStorageService{baseDir: baseDir}, nil
}

func (s *LocalStorageService) Name() string { return "local" }

func (s *LocalStorageService) BaseDir() string { return s.baseDir }

func (s *LocalStorageService) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(s.baseDir, 0o750)
}

// resolve 把 key 转为 baseDir 下的绝对路径，拒绝跳出 baseDir 的 key
func (s *LocalStorageService) resolve(objectName string) (string, error) {
	clean := filepath.Clean("/" + objectName)
	if clean == "/" || strings.Contains(objectName, "..") {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *LocalStorageService) PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) (PutObjectResult, error) {
	fullPath, err := s.resolve(objectName)
	if err != nil {
		return PutObjectResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return PutObjectResult{}, fmt.Errorf("创建目录失败: %w", err)
	}
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("创建临时文件失败: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return PutObjectResult{}, fmt.Errorf("写入数据失败: %w", err)
	}
	if objectSize >= 0 && size != objectSize {
		f.Close()
		os.Remove(tmpPath)
		return PutObjectResult{}, fmt.Errorf("写入字节数 %d 与声明大小 %d 不一致", size, objectSize)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return PutObjectResult{}, fmt.Errorf("fsync 失败: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return PutObjectResult{}, fmt.Errorf("关闭文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return PutObjectResult{}, fmt.Errorf("重命名文件失败: %w", err)
	}

	return PutObjectResult{Key: objectName, Size: size}, nil
}

func (s *LocalStorageService) GetObject(ctx context.Context, objectName string) (GetObjectResult, error) {
	fullPath, err := s.resolve(objectName)
	if err != nil {
		return GetObjectResult{}, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return GetObjectResult{}, fmt.Errorf("%s: %w", objectName, ErrObjectNotFound)
		}
		return GetObjectResult{}, fmt.Errorf("打开文件 %s 失败: %w", objectName, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return GetObjectResult{}, fmt.Errorf("读取文件信息失败: %w", err)
	}
	return GetObjectResult{
		Reader:   f,
		Size:     info.Size(),
		MimeType: mime.TypeByExtension(filepath.Ext(fullPath)),
	}, nil
}

func (s *LocalStorageService) RemoveObject(ctx context.Context, objectName string) error {
	fullPath, err := s.resolve(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件 %s 失败: %w", objectName, err)
	}
	return nil
}
