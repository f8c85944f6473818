package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DemoPassword 临时演示账号的固定密码
	DemoPassword    = "demo1234"
	demoEmailDomain = "demo.fileshare.local"
	minPasswordLen  = 6
)

// 用户不存在时也做一次 bcrypt 比较，避免通过响应时间判断邮箱是否注册
var dummyHash, _ = utils.HashPassword("fileshare-dummy-password")

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type DemoResult struct {
	Token         string       `json:"token"`
	ExpiresAt     time.Time    `json:"expiresAt"`
	DemoExpiresAt time.Time    `json:"demoExpiresAt"`
	User          *models.User `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, token string) error
	ProvisionDemo(ctx context.Context) (*DemoResult, error)
}

type authService struct {
	userRepo repositories.UserRepository
	sessions SessionService
	demo     config.DemoConfig
	now      func() time.Time
}

// 确保authService实现了AuthService的方法
var _ AuthService = (*authService)(nil)

func NewAuthService(userRepo repositories.UserRepository, sessions SessionService, demoCfg config.DemoConfig, now func() time.Time) AuthService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &authService{
		userRepo: userRepo,
		sessions: sessions,
		demo:     demoCfg,
		now:      now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid email", xerr.ErrInvalidParams)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", xerr.ErrInvalidParams, minPasswordLen)
	}
	return nil
}

func (s *authService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	//检查邮箱是否存在
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, xerr.ErrEmailAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, xerr.ErrEmailAlreadyExists
		}
		return nil, err
	}

	logger.Info("User registered successfully", zap.Uint64("userID", user.ID), zap.String("email", user.Email))
	return user, nil
}

// Login 邮箱不存在和密码错误返回同一个错误
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		utils.CheckPasswordHash(password, dummyHash)
		return nil, xerr.ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, xerr.ErrInvalidCredentials
	}
	if !user.IsActive || user.DemoExpired(s.now()) {
		return nil, xerr.ErrAccountDisabled
	}

	token, expiresAt, err := s.sessions.IssueToken(ctx, user)
	if err != nil {
		return nil, err
	}
	logger.Info("User logged in", zap.Uint64("userID", user.ID))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// ProvisionDemo 创建一个临时演示账号并直接登录
// 账号在 demo.lifetime 后失效，token 本身按 jwt.expires_in 签发
func (s *authService) ProvisionDemo(ctx context.Context) (*DemoResult, error) {
	if !s.demo.Enabled {
		return nil, fmt.Errorf("%w: demo accounts are disabled", xerr.ErrForbidden)
	}

	hashedPassword, err := utils.HashPassword(DemoPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	demoExpiresAt := now.Add(s.demo.Lifetime)
	user := &models.User{
		Email:           fmt.Sprintf("demo-%s@%s", utils.NewShortID(), demoEmailDomain),
		PasswordHash:    hashedPassword,
		Role:            models.RoleUser,
		IsActive:        true,
		IsDemo:          true,
		IsTemporaryDemo: true,
		DemoExpiresAt:   &demoExpiresAt,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.sessions.IssueToken(ctx, user)
	if err != nil {
		return nil, err
	}
	logger.Info("demo account provisioned", zap.Uint64("userID", user.ID), zap.Time("demoExpiresAt", demoExpiresAt))
	return &DemoResult{
		Token:         token,
		ExpiresAt:     expiresAt,
		DemoExpiresAt: demoExpiresAt,
		User:          user,
	}, nil
}
