package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"go.uber.org/zap"
)

// MaxExpiresInHours 分享有效期上限(10 年)
const MaxExpiresInHours = 10 * 365 * 24

// CreateShareInput 可选字段为 nil 时表示不限制
type CreateShareInput struct {
	FileID         uint64
	Password       *string
	MaxDownloads   *int64
	ExpiresInHours *float64
	Title          string
	Description    string
}

type ShareService interface {
	CreateShare(ctx context.Context, callerID uint64, isAdmin bool, in CreateShareInput) (*models.Share, error)
	ResolveShare(ctx context.Context, token string) (*models.ShareView, error)
	ValidateForDownload(ctx context.Context, token, password string) (*models.Share, error)
	RecordDownload(ctx context.Context, token string) error
	DownloadShared(ctx context.Context, token, password string) (*models.File, io.ReadCloser, error)
	ListUserShares(ctx context.Context, userID uint64, page, pageSize int) ([]models.Share, int64, error)
	SetShareActive(ctx context.Context, callerID uint64, isAdmin bool, shareID uint64, active bool) (*models.Share, error)
	DeleteShare(ctx context.Context, callerID uint64, isAdmin bool, shareID uint64) error
}

type shareService struct {
	shareRepo      repositories.ShareRepository
	fileRepo       repositories.FileRepository
	storageService storage.StorageService
	now            func() time.Time
}

var _ ShareService = (*shareService)(nil)

func NewShareService(
	shareRepo repositories.ShareRepository,
	fileRepo repositories.FileRepository,
	storageService storage.StorageService,
	now func() time.Time,
) ShareService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &shareService{
		shareRepo:      shareRepo,
		fileRepo:       fileRepo,
		storageService: storageService,
		now:            now,
	}
}

// CreateShare 只有文件所有者或管理员可以分享
func (s *shareService) CreateShare(ctx context.Context, callerID uint64, isAdmin bool, in CreateShareInput) (*models.Share, error) {
	if in.MaxDownloads != nil && *in.MaxDownloads <= 0 {
		return nil, fmt.Errorf("%w: maxDownloads must be positive", xerr.ErrInvalidParams)
	}
	if in.ExpiresInHours != nil && !(*in.ExpiresInHours > 0 && *in.ExpiresInHours <= MaxExpiresInHours) {
		return nil, fmt.Errorf("%w: expiresInHours must be in (0, %d]", xerr.ErrInvalidParams, MaxExpiresInHours)
	}

	now := s.now()
	file, err := s.fileRepo.FindByID(ctx, in.FileID)
	if err != nil {
		return nil, err
	}
	if file == nil || file.Expired(now) {
		return nil, xerr.ErrFileNotFound
	}
	if file.UserID != callerID && !isAdmin {
		logger.Warn("CreateShare: caller does not own file",
			zap.Uint64("fileID", file.ID), zap.Uint64("callerID", callerID))
		return nil, xerr.ErrPermissionDenied
	}

	share := &models.Share{
		Token:        utils.NewShareToken(),
		MaxDownloads: in.MaxDownloads,
		IsActive:     true,
		FileID:       file.ID,
		UserID:       callerID,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
	}
	if share.Title == "" {
		share.Title = file.OriginalName
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		share.PasswordHash = &hash
	}
	if in.ExpiresInHours != nil {
		expiresAt := now.Add(time.Duration(*in.ExpiresInHours * float64(time.Hour)))
		share.ExpiresAt = &expiresAt
	}

	if err := s.shareRepo.Create(ctx, share); err != nil {
		return nil, err
	}
	logger.Info("share created",
		zap.Uint64("shareID", share.ID),
		zap.Uint64("fileID", file.ID),
		zap.Bool("password", share.HasPassword()))
	return share, nil
}

// ResolveShare 不存在、停用、过期、下载次数用尽的分享都返回同一个 ErrShareNotFound
func (s *shareService) ResolveShare(ctx context.Context, token string) (*models.ShareView, error) {
	share, err := s.shareRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if share == nil || !share.IsActive || share.Expired(now) || share.Exhausted() {
		return nil, xerr.ErrShareNotFound
	}
	file, err := s.fileRepo.FindByID(ctx, share.FileID)
	if err != nil {
		return nil, err
	}
	if file == nil || file.Expired(now) {
		return nil, xerr.ErrShareNotFound
	}
	return models.NewShareView(share, file), nil
}

// ValidateForDownload 依次检查: 存在 -> 启用 -> 过期 -> 下载次数 -> 密码
func (s *shareService) ValidateForDownload(ctx context.Context, token, password string) (*models.Share, error) {
	share, err := s.shareRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if share == nil || !share.IsActive {
		return nil, xerr.ErrShareNotFound
	}
	if share.Expired(s.now()) {
		return nil, xerr.ErrShareExpired
	}
	if share.Exhausted() {
		return nil, xerr.ErrShareLimitReached
	}
	if share.HasPassword() {
		if password == "" {
			return nil, xerr.ErrSharePasswordRequired
		}
		if !utils.CheckPasswordHash(password, *share.PasswordHash) {
			return nil, xerr.ErrSharePasswordIncorrect
		}
	}
	return share, nil
}

// RecordDownload 检查和自增在同一条 UPDATE 中完成，并发下不会超过上限
func (s *shareService) RecordDownload(ctx context.Context, token string) error {
	now := s.now()
	n, err := s.shareRepo.IncrementDownloads(ctx, token, now)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// 没有更新到行，重新读取以给出具体原因
	share, err := s.shareRepo.FindByToken(ctx, token)
	if err != nil {
		return err
	}
	switch {
	case share == nil || !share.IsActive:
		return xerr.ErrShareNotFound
	case share.Expired(now):
		return xerr.ErrShareExpired
	default:
		return xerr.ErrShareLimitReached
	}
}

// DownloadShared 先计数再打开文件，计数失败时不返回内容
func (s *shareService) DownloadShared(ctx context.Context, token, password string) (*models.File, io.ReadCloser, error) {
	share, err := s.ValidateForDownload(ctx, token, password)
	if err != nil {
		return nil, nil, err
	}
	file, err := s.fileRepo.FindByID(ctx, share.FileID)
	if err != nil {
		return nil, nil, err
	}
	if file == nil || file.Expired(s.now()) {
		return nil, nil, xerr.ErrShareNotFound
	}

	if err := s.RecordDownload(ctx, token); err != nil {
		return nil, nil, err
	}

	obj, err := s.storageService.GetObject(ctx, file.Path)
	if err != nil {
		logger.Error("shared download: failed to open blob",
			zap.Uint64("shareID", share.ID), zap.Uint64("fileID", file.ID), zap.Error(err))
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, xerr.ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", xerr.ErrStorageError, err)
	}
	logger.Info("shared download", zap.Uint64("shareID", share.ID), zap.Uint64("fileID", file.ID))
	return file, obj.Reader, nil
}

func (s *shareService) ListUserShares(ctx context.Context, userID uint64, page, pageSize int) ([]models.Share, int64, error) {
	shares, total, err := s.shareRepo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if shares == nil {
		shares = []models.Share{}
	}
	return shares, total, nil
}

func (s *shareService) checkOwner(ctx context.Context, callerID uint64, isAdmin bool, shareID uint64) (*models.Share, error) {
	share, err := s.shareRepo.FindByID(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share == nil {
		return nil, xerr.ErrShareNotFound
	}
	if share.UserID != callerID && !isAdmin {
		return nil, xerr.ErrPermissionDenied
	}
	return share, nil
}

func (s *shareService) SetShareActive(ctx context.Context, callerID uint64, isAdmin bool, shareID uint64, active bool) (*models.Share, error) {
	share, err := s.checkOwner(ctx, callerID, isAdmin, shareID)
	if err != nil {
		return nil, err
	}
	if err := s.shareRepo.SetActive(ctx, share.ID, active); err != nil {
		return nil, err
	}
	share.IsActive = active
	return share, nil
}

func (s *shareService) DeleteShare(ctx context.Context, callerID uint64, isAdmin bool, shareID uint64) error {
	share, err := s.checkOwner(ctx, callerID, isAdmin, shareID)
	if err != nil {
		return err
	}
	if err := s.shareRepo.Delete(ctx, share.ID); err != nil {
		return err
	}
	logger.Info("share deleted", zap.Uint64("shareID", share.ID), zap.Uint64("callerID", callerID))
	return nil
}
