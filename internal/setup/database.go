package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDatabase 按 driver 打开数据库连接并 ping
// sqlite 使用单连接，写操作由连接池串行化
func OpenDatabase(ctx context.Context, cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite", "":
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object from GORM: %w", err)
	}

	// 设置连接池参数
	if cfg.Driver == "mysql" {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}
	logger.Info("数据库连接成功", zap.String("driver", cfg.Driver))
	return db, nil
}

func ensureSQLiteDir(dsn string) error {
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimPrefix(path, "file:")
	if path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create sqlite dir: %w", err)
	}
	return nil
}

// InitDatabase 建立连接、执行迁移并写入种子数据
// 整个过程受 database.init_timeout 约束，超时视为启动失败
func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	timeout := cfg.Database.InitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		db  *gorm.DB
		err error
	}
	// gorm.Open 内部的 ping 不接受 ctx，放到 goroutine 里用 select 兜住超时
	done := make(chan result, 1)
	go func() {
		db, err := initDatabase(ctx, cfg)
		done <- result{db, err}
	}()

	select {
	case r := <-done:
		return r.db, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("database initialisation exceeded %s: %w", timeout, ctx.Err())
	}
}

func initDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := OpenDatabase(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		CloseDatabase(db)
		return nil, err
	}
	if err := Seed(ctx, db, cfg); err != nil {
		CloseDatabase(db)
		return nil, err
	}
	return db, nil
}

// CloseDatabase 关闭数据库连接
func CloseDatabase(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Error getting generic database object to close", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
		return
	}
	logger.Info("Database connection closed.")
}
