package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"gorm.io/gorm"
)

// UserCounts 用户数量统计
type UserCounts struct {
	Total  int64
	Admins int64
	Demo   int64
	Active int64
}

type UserRepository interface {
	WithTx(tx *gorm.DB) UserRepository
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, search string, page, pageSize int) ([]models.User, int64, error)
	Update(ctx context.Context, id uint64, updates map[string]any) error
	Delete(ctx context.Context, id uint64) error
	FindExpiredDemo(ctx context.Context, now time.Time) ([]models.User, error)
	Counts(ctx context.Context) (UserCounts, error)
}

type userRepository struct {
	db *gorm.DB
}

var _ UserRepository = (*userRepository)(nil)

// NewUserRepository 创建一个新的 UserRepository 实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *gorm.DB) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}
	return nil
}

// FindByID 用户不存在时返回 nil, nil
func (r *userRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// FindByEmail 用户不存在时返回 nil, nil
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// List 按创建时间倒序分页，search 非空时按邮箱模糊匹配
func (r *userRepository) List(ctx context.Context, search string, page, pageSize int) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	query := r.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("email LIKE ?", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计用户数量失败: %w", err)
	}

	offset, limit := normalizePage(page, pageSize)
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("查询用户列表失败: %w", err)
	}
	return users, total, nil
}

// Update 只更新 updates 中给出的列
func (r *userRepository) Update(ctx context.Context, id uint64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("更新用户失败: %w", err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&models.User{}, id).Error; err != nil {
		return fmt.Errorf("删除用户失败: %w", err)
	}
	return nil
}

// FindExpiredDemo 查找已过期的临时演示账号
func (r *userRepository) FindExpiredDemo(ctx context.Context, now time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("is_temporary_demo = ? AND demo_expires_at IS NOT NULL AND demo_expires_at <= ?", true, now).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("查询过期演示账号失败: %w", err)
	}
	return users, nil
}

func (r *userRepository) Counts(ctx context.Context) (UserCounts, error) {
	var c UserCounts
	db := r.db.WithContext(ctx).Model(&models.User{})
	if err := db.Count(&c.Total).Error; err != nil {
		return c, fmt.Errorf("统计用户失败: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&c.Admins).Error; err != nil {
		return c, fmt.Errorf("统计管理员失败: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("is_demo = ?", true).Count(&c.Demo).Error; err != nil {
		return c, fmt.Errorf("统计演示账号失败: %w", err)
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true).Count(&c.Active).Error; err != nil {
		return c, fmt.Errorf("统计活跃用户失败: %w", err)
	}
	return c, nil
}
