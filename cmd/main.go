package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/3Eeeecho/go-fileshare/cmd/server"
	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"go.uber.org/zap"
)

// @title go-fileshare API
// @version 1.0
// @description 文件分享服务：上传、分享链接、临时演示账号和管理后台
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("加载配置出错", zap.Error(err))
	}

	//初始化日志系统
	logger.InitLogger(cfg.Log.OutputPath, cfg.Log.ErrorPath, cfg.Log.Level)
	defer logger.Sync() // 确保在应用退出时刷新所有缓冲的日志条目

	logger.Info("启动文件分享服务...")

	// 创建并构建应用服务器实例
	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("无法启动应用程序", zap.Error(err))
	}

	// 创建一个通道用于接收停止信号
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	srv.Run(context.Background(), stopChan)

	logger.Info("文件分享服务已退出。")
}
