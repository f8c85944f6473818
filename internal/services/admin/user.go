package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/storage"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateUserInput struct {
	Email    string
	Password string
	Role     string
}

// UpdateUserInput 为 nil 的字段保持不变
type UpdateUserInput struct {
	Email    *string
	Password *string
	Role     *string
	IsActive *bool
}

type UserService interface {
	ListUsers(ctx context.Context, search string, page, pageSize int) ([]models.User, int64, error)
	GetUser(ctx context.Context, id uint64) (*models.User, error)
	CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, id uint64, in UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, actorID, id uint64) error
	GetUserStorage(ctx context.Context, id uint64) (*models.UserStorage, error)
	// PurgeExpiredDemoUsers 删除已过期的临时演示账号及其全部数据，返回删除的账号数
	PurgeExpiredDemoUsers(ctx context.Context, now time.Time) (int, error)
}

type userService struct {
	userRepo    repositories.UserRepository
	fileRepo    repositories.FileRepository
	shareRepo   repositories.ShareRepository
	sessionRepo repositories.SessionRepository
	tm          repositories.TransactionManager
	storage     storage.StorageService
	leaderEmail string
}

var _ UserService = (*userService)(nil)

func NewUserService(
	userRepo repositories.UserRepository,
	fileRepo repositories.FileRepository,
	shareRepo repositories.ShareRepository,
	sessionRepo repositories.SessionRepository,
	tm repositories.TransactionManager,
	storageService storage.StorageService,
	leaderEmail string,
) UserService {
	return &userService{
		userRepo:    userRepo,
		fileRepo:    fileRepo,
		shareRepo:   shareRepo,
		sessionRepo: sessionRepo,
		tm:          tm,
		storage:     storageService,
		leaderEmail: normalizeEmail(leaderEmail),
	}
}

func (s *userService) isLeader(u *models.User) bool {
	return normalizeEmail(u.Email) == s.leaderEmail
}

func validRole(role string) bool {
	return role == models.RoleUser || role == models.RoleAdmin
}

func (s *userService) ListUsers(ctx context.Context, search string, page, pageSize int) ([]models.User, int64, error) {
	return s.userRepo.List(ctx, search, page, pageSize)
}

func (s *userService) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, xerr.ErrUserNotFound
	}
	return user, nil
}

func (s *userService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if err := validateCredentials(email, in.Password); err != nil {
		return nil, err
	}
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if role == "" {
		role = models.RoleUser
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", xerr.ErrInvalidParams, in.Role)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, xerr.ErrEmailAlreadyExists
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{Email: email, PasswordHash: hash, Role: role, IsActive: true}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, xerr.ErrEmailAlreadyExists
		}
		return nil, err
	}
	logger.Info("admin created user", zap.Uint64("userID", user.ID), zap.String("role", role))
	return user, nil
}

// UpdateUser 只修改传入的字段；停用账号会同时删除其所有 session
func (s *userService) UpdateUser(ctx context.Context, id uint64, in UpdateUserInput) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.isLeader(user) {
		return nil, xerr.ErrProtectedAccount
	}

	updates := map[string]any{}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: invalid email", xerr.ErrInvalidParams)
		}
		if email != user.Email {
			if email == s.leaderEmail {
				return nil, xerr.ErrEmailAlreadyExists
			}
			existing, err := s.userRepo.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, xerr.ErrEmailAlreadyExists
			}
			updates["email"] = email
		}
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLen {
			return nil, fmt.Errorf("%w: password must be at least %d characters", xerr.ErrInvalidParams, minPasswordLen)
		}
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		updates["password_hash"] = hash
	}
	if in.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*in.Role))
		if !validRole(role) {
			return nil, fmt.Errorf("%w: unknown role %q", xerr.ErrInvalidParams, *in.Role)
		}
		updates["role"] = role
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Update(ctx, id, updates); err != nil {
			return err
		}
		if in.IsActive != nil && !*in.IsActive {
			if _, err := s.sessionRepo.WithTx(tx).DeleteByUserID(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, xerr.ErrEmailAlreadyExists
		}
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// DeleteUser 领导账号不可删除，管理员也不能删除自己
func (s *userService) DeleteUser(ctx context.Context, actorID, id uint64) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if s.isLeader(user) {
		return xerr.ErrProtectedAccount
	}
	if actorID == id {
		return fmt.Errorf("%w: cannot delete your own account", xerr.ErrForbidden)
	}
	return s.purge(ctx, user)
}

// purge 事务内删除用户的分享、session、文件记录和用户本身，提交后再删除存储中的文件
func (s *userService) purge(ctx context.Context, user *models.User) error {
	var files []models.File
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		files, err = s.fileRepo.WithTx(tx).FindAllByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if _, err := s.shareRepo.WithTx(tx).DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}
		// 其他用户对该用户文件创建的分享也一并删除
		for _, f := range files {
			if _, err := s.shareRepo.WithTx(tx).DeleteByFileID(ctx, f.ID); err != nil {
				return err
			}
		}
		if _, err := s.sessionRepo.WithTx(tx).DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}
		if _, err := s.fileRepo.WithTx(tx).DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).Delete(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := s.storage.RemoveObject(ctx, f.Path); err != nil {
			logger.Warn("failed to remove blob of deleted user",
				zap.Uint64("userID", user.ID), zap.String("path", f.Path), zap.Error(err))
		}
	}
	logger.Info("user deleted", zap.Uint64("userID", user.ID), zap.Int("files", len(files)))
	return nil
}

func (s *userService) GetUserStorage(ctx context.Context, id uint64) (*models.UserStorage, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.fileRepo.FindAllByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	used, err := s.fileRepo.SumSizeByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.UserStorage{UserID: user.ID, Email: user.Email, FileCount: int64(len(files)), Bytes: used}, nil
}

func (s *userService) PurgeExpiredDemoUsers(ctx context.Context, now time.Time) (int, error) {
	users, err := s.userRepo.FindExpiredDemo(ctx, now)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for i := range users {
		if s.isLeader(&users[i]) {
			continue
		}
		if err := s.purge(ctx, &users[i]); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", users[i].ID, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
