package repositories

import (
	"context"
	"fmt"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"gorm.io/gorm"
)

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

// WithTransaction fn 返回错误或 panic 时回滚
// fn 内只能使用 tx，sqlite 单连接下使用外部 db 会死锁
// 开启和提交事务失败时包装为 ErrDatabaseError
func (tm *transactionManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("%w: begin transaction: %v", xerr.ErrDatabaseError, tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: commit transaction: %v", xerr.ErrDatabaseError, err)
	}
	return nil
}
