package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// sweep 每批处理的过期文件数
const expiredBatchSize = 200

// UploadInput 一个待上传的文件
type UploadInput struct {
	OriginalName string
	Mimetype     string
	Size         int64 // 客户端声明的大小，未知时为 -1
	Reader       io.Reader
	IsEncrypted  bool
}

type FileService interface {
	// 文件上传
	Upload(ctx context.Context, userID uint64, inputs []UploadInput) ([]models.File, error)

	// 文件查询
	ListUserFiles(ctx context.Context, userID uint64) ([]models.File, error)
	GetUserStorageUsed(ctx context.Context, userID uint64) (int64, error)
	GetFile(ctx context.Context, callerID uint64, isAdmin bool, fileID uint64) (*models.File, error)
	ListAllFiles(ctx context.Context, page, pageSize int) ([]models.FileWithOwner, int64, error)

	// 文件下载
	Download(ctx context.Context, callerID uint64, isAdmin bool, fileID uint64) (*models.File, io.ReadCloser, error)
	DownloadArchive(ctx context.Context, callerID uint64, isAdmin bool, fileIDs []uint64, w io.Writer) error

	// 文件删除
	Delete(ctx context.Context, callerID uint64, isAdmin bool, fileID uint64) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type fileService struct {
	fileRepo           repositories.FileRepository
	shareRepo          repositories.ShareRepository
	domainService      FileDomainService               // 业务逻辑
	transactionManager repositories.TransactionManager // 事务管理
	storageService     storage.StorageService
	cfg                config.FileConfig
	now                func() time.Time
}

var _ FileService = (*fileService)(nil)

// NewFileService 创建一个新的文件服务实例
func NewFileService(
	fileRepo repositories.FileRepository,
	shareRepo repositories.ShareRepository,
	domainService FileDomainService,
	transactionManager repositories.TransactionManager,
	storageService storage.StorageService,
	cfg config.FileConfig,
	now func() time.Time,
) FileService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &fileService{
		fileRepo:           fileRepo,
		shareRepo:          shareRepo,
		domainService:      domainService,
		transactionManager: transactionManager,
		storageService:     storageService,
		cfg:                cfg,
		now:                now,
	}
}

// Upload 逐个写入存储并创建记录；任一文件失败时，本次已写入的文件全部撤销
func (s *fileService) Upload(ctx context.Context, userID uint64, inputs []UploadInput) ([]models.File, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no files", xerr.ErrInvalidParams)
	}
	for _, in := range inputs {
		if in.Reader == nil || in.OriginalName == "" {
			return nil, fmt.Errorf("%w: empty file", xerr.ErrInvalidParams)
		}
		if s.cfg.MaxSize > 0 && in.Size > s.cfg.MaxSize {
			return nil, xerr.ErrFileTooLarge
		}
	}

	created := make([]models.File, 0, len(inputs))
	for _, in := range inputs {
		file, err := s.uploadOne(ctx, userID, in)
		if err != nil {
			s.rollbackUploads(ctx, created)
			return nil, err
		}
		created = append(created, *file)
	}
	return created, nil
}

func (s *fileService) uploadOne(ctx context.Context, userID uint64, in UploadInput) (*models.File, error) {
	name := s.domainService.StorageName(in.OriginalName)
	mimetype := s.domainService.DetectMimetype(in.Mimetype, in.OriginalName)

	reader := in.Reader
	if s.cfg.MaxSize > 0 {
		// 多读一个字节用于判断是否超限
		reader = io.LimitReader(in.Reader, s.cfg.MaxSize+1)
	}
	size := in.Size
	if size < 0 || s.cfg.MaxSize > 0 {
		size = -1
	}

	res, err := s.storageService.PutObject(ctx, name, reader, size, mimetype)
	if err != nil {
		logger.Error("Upload: failed to store blob", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerr.ErrStorageError, err)
	}
	if s.cfg.MaxSize > 0 && res.Size > s.cfg.MaxSize {
		s.removeBlob(ctx, name)
		return nil, xerr.ErrFileTooLarge
	}
	if in.Size >= 0 && res.Size != in.Size {
		s.removeBlob(ctx, name)
		return nil, fmt.Errorf("%w: size mismatch, declared %d, received %d", xerr.ErrInvalidParams, in.Size, res.Size)
	}

	now := s.now()
	file := &models.File{
		Filename:     name,
		OriginalName: in.OriginalName,
		Mimetype:     mimetype,
		Size:         res.Size,
		Path:         name,
		IsEncrypted:  in.IsEncrypted,
		UploadedAt:   now,
		UserID:       userID,
	}
	if s.cfg.Retention > 0 {
		expiresAt := now.Add(s.cfg.Retention)
		file.ExpiresAt = &expiresAt
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		// 记录写入失败时不留下无主文件
		s.removeBlob(ctx, name)
		return nil, err
	}

	logger.Info("Upload: file stored",
		zap.Uint64("fileID", file.ID),
		zap.Uint64("userID", userID),
		zap.Int64("size", file.Size))
	return file, nil
}

func (s *fileService) rollbackUploads(ctx context.Context, files []models.File) {
	for _, f := range files {
		if err := s.fileRepo.Delete(ctx, f.ID); err != nil {
			logger.Error("Upload: failed to roll back file record", zap.Uint64("fileID", f.ID), zap.Error(err))
		}
		s.removeBlob(ctx, f.Path)
	}
}

func (s *fileService) removeBlob(ctx context.Context, path string) {
	if err := s.storageService.RemoveObject(ctx, path); err != nil {
		logger.Warn("failed to remove blob", zap.String("path", path), zap.Error(err))
	}
}

func (s *fileService) ListUserFiles(ctx context.Context, userID uint64) ([]models.File, error) {
	files, err := s.fileRepo.ListByUser(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.File{}
	}
	return files, nil
}

// GetUserStorageUsed 只是 size 求和，不核对存储的实际占用
func (s *fileService) GetUserStorageUsed(ctx context.Context, userID uint64) (int64, error) {
	return s.fileRepo.SumSizeByUser(ctx, userID)
}

func (s *fileService) GetFile(ctx context.Context, callerID uint64, isAdmin bool, fileID uint64) (*models.File, error) {
	return s.domainService.CheckFile(ctx, callerID, isAdmin, fileID, s.now())
}

func (s *fileService) ListAllFiles(ctx context.Context, page, pageSize int) ([]models.FileWithOwner, int64, error) {
	files, total, err := s.fileRepo.ListAll(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if files == nil {
		files = []models.FileWithOwner{}
	}
	return files, total, nil
}

// Download 调用方负责关闭返回的 ReadCloser
func (s *fileService) Download(ctx context.Context, callerID uint64, isAdmin bool, fileID uint64) (*models.File, io.ReadCloser, error) {
	file, err := s.domainService.CheckFile(ctx, callerID, isAdmin, fileID, s.now())
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.open(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	return file, reader, nil
}

func (s *fileService) open(ctx context.Context, file *models.File) (io.ReadCloser, error) {
	obj, err := s.storageService.GetObject(ctx, file.Path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			logger.Error("file record exists but blob is missing", zap.Uint64("fileID", file.ID), zap.String("path", file.Path))
			return nil, xerr.ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: %v", xerr.ErrStorageError, err)
	}
	return obj.Reader, nil
}

// Delete 事务内删除分享和文件记录，之后再删除存储中的文件
// 记录删除即生效，存储删除失败只记录日志
func (s *fileService) Delete(ctx context.Context, callerID uint64, isAdmin bool, fileID uint64) error {
	file, err := s.domainService.CheckFile(ctx, callerID, isAdmin, fileID, s.now())
	if err != nil {
		return err
	}
	return s.deleteFile(ctx, file)
}

func (s *fileService) deleteFile(ctx context.Context, file *models.File) error {
	var sharesRemoved int64
	err := s.transactionManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		n, err := s.shareRepo.WithTx(tx).DeleteByFileID(ctx, file.ID)
		if err != nil {
			return err
		}
		sharesRemoved = n
		return s.fileRepo.WithTx(tx).Delete(ctx, file.ID)
	})
	if err != nil {
		return err
	}

	if err := s.storageService.RemoveObject(ctx, file.Path); err != nil {
		logger.Warn("file record deleted but blob removal failed",
			zap.Uint64("fileID", file.ID), zap.String("path", file.Path), zap.Error(err))
	}
	logger.Info("file deleted", zap.Uint64("fileID", file.ID), zap.Int64("sharesRemoved", sharesRemoved))
	return nil
}

// DeleteExpired 删除所有已过期的文件，返回删除数量
func (s *fileService) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var errs []error
	for {
		files, err := s.fileRepo.FindExpired(ctx, now, expiredBatchSize)
		if err != nil {
			return removed, err
		}
		progressed := false
		for i := range files {
			if err := s.deleteFile(ctx, &files[i]); err != nil {
				errs = append(errs, fmt.Errorf("file %d: %w", files[i].ID, err))
				continue
			}
			removed++
			progressed = true
		}
		// 一整批都失败时退出，避免死循环
		if len(files) < expiredBatchSize || !progressed {
			break
		}
	}
	return removed, errors.Join(errs...)
}
