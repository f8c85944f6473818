package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"gorm.io/gorm"
)

// ShareCounts 分享统计
type ShareCounts struct {
	Total     int64
	Active    int64
	Downloads int64
}

type ShareRepository interface {
	WithTx(tx *gorm.DB) ShareRepository
	Create(ctx context.Context, share *models.Share) error
	FindByToken(ctx context.Context, token string) (*models.Share, error)
	FindByID(ctx context.Context, id uint64) (*models.Share, error)
	ListByUser(ctx context.Context, userID uint64, page, pageSize int) ([]models.Share, int64, error)
	// IncrementDownloads 在一条 UPDATE 中检查状态并自增下载次数，返回受影响行数
	IncrementDownloads(ctx context.Context, token string, now time.Time) (int64, error)
	SetActive(ctx context.Context, id uint64, active bool) error
	Delete(ctx context.Context, id uint64) error
	DeleteByFileID(ctx context.Context, fileID uint64) (int64, error)
	DeleteByUserID(ctx context.Context, userID uint64) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
	Counts(ctx context.Context) (ShareCounts, error)
}

type shareRepository struct {
	db *gorm.DB
}

var _ ShareRepository = (*shareRepository)(nil)

// NewShareRepository 创建新的shareRepository实例
func NewShareRepository(db *gorm.DB) ShareRepository {
	return &shareRepository{db: db}
}

func (r *shareRepository) WithTx(tx *gorm.DB) ShareRepository {
	return &shareRepository{db: tx}
}

// 创建新的数据库记录
func (r *shareRepository) Create(ctx context.Context, share *models.Share) error {
	if err := r.db.WithContext(ctx).Create(share).Error; err != nil {
		return fmt.Errorf("创建分享链接失败: %w", err)
	}
	return nil
}

// FindByToken 不过滤 is_active，由调用方决定如何处理
func (r *shareRepository) FindByToken(ctx context.Context, token string) (*models.Share, error) {
	var share models.Share
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分享链接失败: %w", err)
	}
	return &share, nil
}

func (r *shareRepository) FindByID(ctx context.Context, id uint64) (*models.Share, error) {
	var share models.Share
	err := r.db.WithContext(ctx).First(&share, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分享链接失败: %w", err)
	}
	return &share, nil
}

// 查找特定用户的所有分享记录
func (r *shareRepository) ListByUser(ctx context.Context, userID uint64, page, pageSize int) ([]models.Share, int64, error) {
	var shares []models.Share
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Share{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计分享数量失败: %w", err)
	}

	offset, limit := normalizePage(page, pageSize)
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&shares).Error; err != nil {
		return nil, 0, fmt.Errorf("查询分享列表失败: %w", err)
	}
	return shares, total, nil
}

func (r *shareRepository) IncrementDownloads(ctx context.Context, token string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Share{}).
		Where("token = ? AND is_active = ?", token, true).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Where("(max_downloads IS NULL OR downloads < max_downloads)").
		UpdateColumn("downloads", gorm.Expr("downloads + ?", 1))
	if res.Error != nil {
		return 0, fmt.Errorf("更新下载次数失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *shareRepository) SetActive(ctx context.Context, id uint64, active bool) error {
	err := r.db.WithContext(ctx).Model(&models.Share{}).Where("id = ?", id).UpdateColumn("is_active", active).Error
	if err != nil {
		return fmt.Errorf("更新分享状态失败: %w", err)
	}
	return nil
}

func (r *shareRepository) Delete(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&models.Share{}, id).Error; err != nil {
		return fmt.Errorf("删除分享链接失败: %w", err)
	}
	return nil
}

func (r *shareRepository) DeleteByFileID(ctx context.Context, fileID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&models.Share{})
	if res.Error != nil {
		return 0, fmt.Errorf("删除文件的分享链接失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *shareRepository) DeleteByUserID(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Share{})
	if res.Error != nil {
		return 0, fmt.Errorf("删除用户的分享链接失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteOrphans 删除引用的文件记录已不存在的分享
func (r *shareRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM files WHERE files.id = shares.file_id)").
		Delete(&models.Share{})
	if res.Error != nil {
		return 0, fmt.Errorf("清理孤立分享失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *shareRepository) Counts(ctx context.Context) (ShareCounts, error) {
	var row struct {
		Total     int64
		Active    int64
		Downloads int64
	}
	err := r.db.WithContext(ctx).Model(&models.Share{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active, COALESCE(SUM(downloads), 0) AS downloads").
		Scan(&row).Error
	if err != nil {
		return ShareCounts{}, fmt.Errorf("统计分享失败: %w", err)
	}
	return ShareCounts{Total: row.Total, Active: row.Active, Downloads: row.Downloads}, nil
}
