package explorer

import (
	"context"
	"fmt"
	"io"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/klauspost/compress/zip"
)

// 单次打包的文件数上限
const maxArchiveFiles = 100

// DownloadArchive 把多个文件打包成 zip 写入 w
// 写入前先检查全部文件的权限，出错时还没有向 w 写任何内容
func (s *fileService) DownloadArchive(ctx context.Context, callerID uint64, isAdmin bool, fileIDs []uint64, w io.Writer) error {
	if len(fileIDs) == 0 {
		return fmt.Errorf("%w: no files selected", xerr.ErrInvalidParams)
	}
	if len(fileIDs) > maxArchiveFiles {
		return fmt.Errorf("%w: at most %d files per archive", xerr.ErrInvalidParams, maxArchiveFiles)
	}

	now := s.now()
	files := make([]*models.File, 0, len(fileIDs))
	picked := make(map[uint64]bool, len(fileIDs))
	for _, id := range fileIDs {
		if picked[id] {
			continue
		}
		picked[id] = true
		file, err := s.domainService.CheckFile(ctx, callerID, isAdmin, id, now)
		if err != nil {
			return err
		}
		files = append(files, file)
	}

	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(files))
	for _, file := range files {
		if err := s.addToArchive(ctx, zw, file, s.domainService.ZipEntryName(seen, file.OriginalName)); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func (s *fileService) addToArchive(ctx context.Context, zw *zip.Writer, file *models.File, name string) error {
	reader, err := s.open(ctx, file)
	if err != nil {
		return err
	}
	defer reader.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: file.UploadedAt,
	})
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(entry, reader); err != nil {
		return fmt.Errorf("%w: write zip entry %s: %v", xerr.ErrStorageError, name, err)
	}
	return nil
}
