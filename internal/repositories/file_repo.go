package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"gorm.io/gorm"
)

type FileRepository interface {
	WithTx(tx *gorm.DB) FileRepository
	Create(ctx context.Context, file *models.File) error
	FindByID(ctx context.Context, id uint64) (*models.File, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]models.File, error)
	ListByUser(ctx context.Context, userID uint64, now time.Time) ([]models.File, error)
	FindAllByUser(ctx context.Context, userID uint64) ([]models.File, error)
	ListAll(ctx context.Context, page, pageSize int) ([]models.FileWithOwner, int64, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.File, error)
	Delete(ctx context.Context, id uint64) error
	DeleteByUserID(ctx context.Context, userID uint64) (int64, error)
	SumSizeByUser(ctx context.Context, userID uint64) (int64, error)
	Totals(ctx context.Context) (count int64, bytes int64, err error)
	TopUploaders(ctx context.Context, limit int) ([]models.UserStorage, error)
}

type fileRepository struct {
	db *gorm.DB
}

var _ FileRepository = (*fileRepository)(nil)

func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) WithTx(tx *gorm.DB) FileRepository {
	return &fileRepository{db: tx}
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("创建文件记录失败: %w", err)
	}
	return nil
}

// FindByID 文件不存在时返回 nil, nil
func (r *fileRepository) FindByID(ctx context.Context, id uint64) (*models.File, error) {
	var file models.File
	err := r.db.WithContext(ctx).First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询文件失败: %w", err)
	}
	return &file, nil
}

func (r *fileRepository) FindByIDs(ctx context.Context, ids []uint64) ([]models.File, error) {
	var files []models.File
	if len(ids) == 0 {
		return files, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&files).Error; err != nil {
		return nil, fmt.Errorf("批量查询文件失败: %w", err)
	}
	return files, nil
}

// ListByUser 返回用户未过期的文件，最新上传的在前
func (r *fileRepository) ListByUser(ctx context.Context, userID uint64, now time.Time) ([]models.File, error) {
	var files []models.File
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now).
		Order("uploaded_at DESC, id DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户文件失败: %w", err)
	}
	return files, nil
}

// FindAllByUser 包括已过期的文件，删除用户时使用
func (r *fileRepository) FindAllByUser(ctx context.Context, userID uint64) ([]models.File, error) {
	var files []models.File
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&files).Error; err != nil {
		return nil, fmt.Errorf("查询用户文件失败: %w", err)
	}
	return files, nil
}

func (r *fileRepository) ListAll(ctx context.Context, page, pageSize int) ([]models.FileWithOwner, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.File{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计文件数量失败: %w", err)
	}

	offset, limit := normalizePage(page, pageSize)
	var files []models.FileWithOwner
	err := r.db.WithContext(ctx).
		Table("files").
		Select("files.*, users.email AS owner_email").
		Joins("LEFT JOIN users ON users.id = files.user_id").
		Order("files.uploaded_at DESC, files.id DESC").
		Offset(offset).Limit(limit).
		Scan(&files).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询文件列表失败: %w", err)
	}
	return files, total, nil
}

// FindExpired 查找 expires_at 已到期的文件
func (r *fileRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.File, error) {
	var files []models.File
	query := r.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", now).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&files).Error; err != nil {
		return nil, fmt.Errorf("查询过期文件失败: %w", err)
	}
	return files, nil
}

func (r *fileRepository) Delete(ctx context.Context, id uint64) error {
	if err := r.db.WithContext(ctx).Delete(&models.File{}, id).Error; err != nil {
		return fmt.Errorf("删除文件记录失败: %w", err)
	}
	return nil
}

func (r *fileRepository) DeleteByUserID(ctx context.Context, userID uint64) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.File{})
	if res.Error != nil {
		return 0, fmt.Errorf("删除用户文件记录失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SumSizeByUser 用户已用空间，只统计数据库记录，不核对实际存储
func (r *fileRepository) SumSizeByUser(ctx context.Context, userID uint64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.File{}).
		Select("COALESCE(SUM(size), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("统计用户存储失败: %w", err)
	}
	return total, nil
}

func (r *fileRepository) Totals(ctx context.Context) (int64, int64, error) {
	var row struct {
		Count int64
		Bytes int64
	}
	err := r.db.WithContext(ctx).Model(&models.File{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size), 0) AS bytes").
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("统计文件总量失败: %w", err)
	}
	return row.Count, row.Bytes, nil
}

// TopUploaders 按占用空间倒序
func (r *fileRepository) TopUploaders(ctx context.Context, limit int) ([]models.UserStorage, error) {
	var rows []models.UserStorage
	err := r.db.WithContext(ctx).
		Table("files").
		Select("files.user_id AS user_id, users.email AS email, COUNT(files.id) AS file_count, COALESCE(SUM(files.size), 0) AS bytes").
		Joins("JOIN users ON users.id = files.user_id").
		Group("files.user_id, users.email").
		Order("bytes DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("统计上传排行失败: %w", err)
	}
	return rows, nil
}
