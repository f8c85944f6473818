package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"go.uber.org/zap"
)

// InitStorage 按 storage.type 创建存储服务并确保存储桶(或目录)存在
func InitStorage(cfg *config.Config) (storage.StorageService, error) {
	svc, err := storage.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化存储服务失败: %w", err)
	}

	// 外部存储可能有网络延迟，给足超时
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("%s 存储初始化失败: %w", svc.Name(), err)
	}

	logger.Info("存储服务已初始化", zap.String("type", svc.Name()))
	return svc, nil
}
