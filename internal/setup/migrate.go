package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DemoSeedEmail 永久演示账号
const DemoSeedEmail = "demo@fileshare.local"

// DemoPassword 演示账号的固定密码
const DemoPassword = "demo1234"

var credentialsOut io.Writer = os.Stderr

type migration struct {
	name string
	up   func(tx *gorm.DB) error
}

// 按顺序执行，已记录在 schema_migrations 中的步骤会被跳过
var migrations = []migration{
	{"0001_create_users", func(tx *gorm.DB) error { return tx.AutoMigrate(&models.User{}) }},
	{"0002_create_files", func(tx *gorm.DB) error { return tx.AutoMigrate(&models.File{}) }},
	{"0003_create_shares", func(tx *gorm.DB) error { return tx.AutoMigrate(&models.Share{}) }},
	{"0004_create_sessions", func(tx *gorm.DB) error { return tx.AutoMigrate(&models.Session{}) }},
}

// Migrate 依次执行迁移步骤，遇到第一个失败即返回
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(&models.SchemaMigration{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var count int64
		if err := db.Model(&models.SchemaMigration{}).Where("name = ?", m.name).Count(&count).Error; err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if count > 0 {
			continue
		}
		if err := m.up(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		if err := db.Create(&models.SchemaMigration{Name: m.name, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		logger.Info("migration applied", zap.String("name", m.name))
	}
	return nil
}

// Seed 写入领导账号和可选的永久演示账号，已存在时不做修改
func Seed(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	db = db.WithContext(ctx)

	password := cfg.Admin.LeaderPassword
	generated := false
	if password == "" {
		password = utils.NewShareToken()[:16]
		generated = true
	}
	created, err := seedUser(db, &models.User{
		Email:    cfg.Admin.LeaderEmail,
		Role:     models.RoleAdmin,
		IsActive: true,
	}, password)
	if err != nil {
		return fmt.Errorf("seed leader account: %w", err)
	}
	if created && generated {
		// 密码只打印到终端一次，不进入日志文件
		logger.Warn("leader account created with a generated password, set admin.leader_password to control it",
			zap.String("email", cfg.Admin.LeaderEmail))
		fmt.Fprintf(credentialsOut, "leader account %s generated password: %s\n", cfg.Admin.LeaderEmail, password)
	}

	if cfg.Demo.SeedUser {
		if _, err := seedUser(db, &models.User{
			Email:    DemoSeedEmail,
			Role:     models.RoleUser,
			IsActive: true,
			IsDemo:   true,
		}, DemoPassword); err != nil {
			return fmt.Errorf("seed demo account: %w", err)
		}
	}
	return nil
}

func seedUser(db *gorm.DB, user *models.User, password string) (bool, error) {
	var existing models.User
	err := db.Where("email = ?", user.Email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return false, err
	}
	user.PasswordHash = hash
	if err := db.Create(user).Error; err != nil {
		return false, err
	}
	logger.Info("seeded account", zap.String("email", user.Email), zap.String("role", user.Role))
	return true, nil
}
