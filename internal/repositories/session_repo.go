package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"gorm.io/gorm"
)

type SessionRepository interface {
	WithTx(tx *gorm.DB) SessionRepository
	Create(ctx context.Context, session *models.Session) error
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByUserID(ctx context.Context, userID uint64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

var _ SessionRepository = (*sessionRepository)(nil)

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) WithTx(tx *gorm.DB) SessionRepository {
	return &sessionRepository{db: tx}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("创建会话失败: %w", err)
	}
	return nil
}

// FindByToken 会话不存在时返回 nil, nil
func (r *sessionRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	res := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("删除会话失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("删除用户会话失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("清理过期会话失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *sessionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Session{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计会话失败: %w", err)
	}
	return n, nil
}
