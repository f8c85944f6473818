package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/handlers"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/ratelimit"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"github.com/3Eeeecho/go-fileshare/internal/router"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/3Eeeecho/go-fileshare/internal/services/cleanup"
	"github.com/3Eeeecho/go-fileshare/internal/services/explorer"
	"github.com/3Eeeecho/go-fileshare/internal/services/share"
	"github.com/3Eeeecho/go-fileshare/internal/setup"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 优雅关机的最长等待时间
const shutdownTimeout = 5 * time.Second

type Server struct {
	httpServer  *http.Server
	db          *gorm.DB
	redisClient *redis.Client
	sweeper     *cleanup.Sweeper
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	// 初始化数据库连接、迁移和种子数据
	db, err := setup.InitDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 初始化 Redis 连接，未配置时不限流
	redisClient, err := setup.InitRedis(context.Background(), &cfg.Redis)
	if err != nil {
		setup.CloseDatabase(db)
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	ss, err := setup.InitStorage(cfg)
	if err != nil {
		setup.CloseDatabase(db)
		setup.CloseRedis(redisClient)
		return nil, err
	}

	//  初始化 Repositories
	userRepo := repositories.NewUserRepository(db)
	fileRepo := repositories.NewFileRepository(db)
	shareRepo := repositories.NewShareRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	tm := repositories.NewTransactionManager(db)

	//  初始化 Services
	sessionService := admin.NewSessionService(userRepo, sessionRepo, cfg.JWT, nil)
	authService := admin.NewAuthService(userRepo, sessionService, cfg.Demo, nil)
	userService := admin.NewUserService(userRepo, fileRepo, shareRepo, sessionRepo, tm, ss, cfg.Admin.LeaderEmail)
	statsService := admin.NewStatsService(userRepo, fileRepo, shareRepo, sessionRepo)
	domainService := explorer.NewFileDomainService(fileRepo)
	fileService := explorer.NewFileService(fileRepo, shareRepo, domainService, tm, ss, cfg.File, nil)
	shareService := share.NewShareService(shareRepo, fileRepo, ss, nil)
	sweeper := cleanup.NewSweeper(fileService, sessionRepo, shareRepo, userService, cfg.Cleanup.Interval, nil)

	opts := router.Options{
		Mode:               cfg.Server.Mode,
		FrontendOrigin:     cfg.Server.FrontendOrigin,
		MaxMultipartMemory: 32 << 20,
	}
	if redisClient != nil {
		opts.LoginLimiter = newLimiter(redisClient, "fileshare:ratelimit:login", cfg.RateLimit.LoginPerMinute)
		opts.DownloadLimiter = newLimiter(redisClient, "fileshare:ratelimit:download", cfg.RateLimit.DownloadPerMinute)
	}

	//  初始化 Handlers 和路由
	engine := router.InitRouter(router.Handlers{
		Auth:  handlers.NewAuthHandler(authService),
		File:  handlers.NewFileHandler(fileService),
		Share: handlers.NewShareHandler(shareService, cfg.Server.FrontendOrigin),
		Admin: handlers.NewAdminHandler(userService, statsService, fileService, sweeper),
	}, sessionService, opts)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		httpServer:  httpServer,
		db:          db,
		redisClient: redisClient,
		sweeper:     sweeper,
	}, nil
}

// newLimiter perMinute 不大于 0 时该接口不限流
func newLimiter(client *redis.Client, prefix string, perMinute int) ratelimit.Limiter {
	if perMinute <= 0 {
		logger.Info("rate limit disabled", zap.String("prefix", prefix))
		return nil
	}
	l, err := ratelimit.NewFixedWindowLimiter(client, prefix, perMinute, time.Minute)
	if err != nil {
		// client 非空且参数为正时不会出错
		logger.Error("failed to create rate limiter", zap.String("prefix", prefix), zap.Error(err))
		return nil
	}
	return l
}

// Run 启动 HTTP 服务器和定时清理，并处理优雅关机
func (s *Server) Run(ctx context.Context, stopChan chan os.Signal) {
	// 确保在应用关闭时，所有连接都被释放
	defer setup.CloseDatabase(s.db)
	defer setup.CloseRedis(s.redisClient)

	s.sweeper.Start(ctx)
	defer s.sweeper.Stop()

	// 启动 HTTP 服务器
	go func() {
		logger.Info("Server is running", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// 等待停止信号
	<-stopChan
	logger.Info("Shutting down server...")

	// 优雅关机
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("Server exited gracefully")
}
