// Package testutil 提供测试用的数据库和固定时钟
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/setup"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MySQLDSNEnv 设置后仓库测试会额外在 MySQL 上跑一遍
const MySQLDSNEnv = "GO_FILESHARE_TEST_MYSQL_DSN"

var quietOnce sync.Once

// Quiet 测试中关闭日志输出
func Quiet() {
	quietOnce.Do(func() { logger.SetLogger(zap.NewNop()) })
}

// NewTestDB 在 t.TempDir() 下创建一个已迁移的 SQLite 数据库
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	Quiet()
	return open(t, &config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
}

// RunWithBackends 在每个可用的数据库上运行同一组测试
func RunWithBackends(t *testing.T, fn func(t *testing.T, db *gorm.DB)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewTestDB(t))
	})

	dsn := os.Getenv(MySQLDSNEnv)
	if dsn == "" {
		return
	}
	t.Run("mysql", func(t *testing.T) {
		Quiet()
		db := open(t, &config.DatabaseConfig{Driver: "mysql", DSN: dsn, MaxOpenConns: 10, MaxIdleConns: 2})
		truncate(t, db)
		fn(t, db)
	})
}

func open(t *testing.T, cfg *config.DatabaseConfig) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	db, err := setup.OpenDatabase(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { setup.CloseDatabase(db) })
	require.NoError(t, setup.Migrate(ctx, db))
	return db
}

func truncate(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, m := range []any{&models.Session{}, &models.Share{}, &models.File{}, &models.User{}} {
		require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error)
	}
}

// Clock 可手动推进的时钟
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
