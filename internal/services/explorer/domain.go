package explorer

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMimetype = "application/octet-stream"

// FileDomainService 文件领域服务，处理文件访问规则和命名
type FileDomainService interface {
	// ValidateFile 只检查文件状态和权限,不返回文件
	ValidateFile(callerID uint64, isAdmin bool, file *models.File, now time.Time) error
	// CheckFile 查询文件并检查权限
	CheckFile(ctx context.Context, callerID uint64, isAdmin bool, fileID uint64, now time.Time) (*models.File, error)
	StorageName(originalName string) string
	DetectMimetype(declared, originalName string) string
	ZipEntryName(seen map[string]int, originalName string) string
}

// FileFinder 接口，用于依赖注入
type FileFinder interface {
	FindByID(ctx context.Context, id uint64) (*models.File, error)
}

type fileDomainService struct {
	fileRepo FileFinder
}

// NewFileDomainService 创建文件领域服务实例
func NewFileDomainService(fileRepo FileFinder) FileDomainService {
	return &fileDomainService{fileRepo: fileRepo}
}

// ValidateFile 已过期的文件视为不存在
func (s *fileDomainService) ValidateFile(callerID uint64, isAdmin bool, file *models.File, now time.Time) error {
	if file == nil || file.Expired(now) {
		return xerr.ErrFileNotFound
	}
	if file.UserID != callerID && !isAdmin {
		logger.Warn("File access denied",
			zap.Uint64("fileID", file.ID),
			zap.Uint64("ownerID", file.UserID),
			zap.Uint64("callerID", callerID))
		return xerr.ErrPermissionDenied
	}
	return nil
}

func (s *fileDomainService) CheckFile(ctx context.Context, callerID uint64, isAdmin bool, fileID uint64, now time.Time) (*models.File, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateFile(callerID, isAdmin, file, now); err != nil {
		return nil, err
	}
	return file, nil
}

// StorageName 存储中的文件名为随机 uuid 加原始扩展名
func (s *fileDomainService) StorageName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	// 扩展名只保留安全字符
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// DetectMimetype 客户端声明的类型优先；未声明或只是 octet-stream 时按扩展名推断
func (s *fileDomainService) DetectMimetype(declared, originalName string) string {
	if declared = strings.TrimSpace(declared); declared != "" && declared != defaultMimetype {
		return declared
	}
	if byExt := mime.TypeByExtension(filepath.Ext(originalName)); byExt != "" {
		return byExt
	}
	return defaultMimetype
}

// ZipEntryName 压缩包内同名文件追加序号: a.txt, a (1).txt
func (s *fileDomainService) ZipEntryName(seen map[string]int, originalName string) string {
	name := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	n, dup := seen[name]
	seen[name] = n + 1
	if !dup {
		return name
	}
	ext := filepath.Ext(name)
	candidate := fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
	// 生成的名字本身也可能已存在
	for {
		if _, taken := seen[candidate]; !taken {
			break
		}
		n++
		candidate = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
	}
	seen[name] = n + 1
	seen[candidate] = 1
	return candidate
}
