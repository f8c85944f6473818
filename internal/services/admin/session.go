package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
	"go.uber.org/zap"
)

// SessionService 签发 token 并把 bearer token 解析为用户
type SessionService interface {
	IssueToken(ctx context.Context, user *models.User) (string, time.Time, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
	Revoke(ctx context.Context, token string) error
}

type sessionService struct {
	userRepo    repositories.UserRepository
	sessionRepo repositories.SessionRepository
	jwt         config.JWTConfig
	now         func() time.Time
}

var _ SessionService = (*sessionService)(nil)

// NewSessionService now 为 nil 时使用系统时间
func NewSessionService(userRepo repositories.UserRepository, sessionRepo repositories.SessionRepository, jwtCfg config.JWTConfig, now func() time.Time) SessionService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &sessionService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		jwt:         jwtCfg,
		now:         now,
	}
}

// IssueToken 生成 JWT 并写入一条 session
func (s *sessionService) IssueToken(ctx context.Context, user *models.User) (string, time.Time, error) {
	now := s.now()
	token, expiresAt, err := utils.GenerateToken(user.ID, user.Email, user.Role, s.jwt.SecretKey, s.jwt.Issuer, s.jwt.ExpiresIn, now)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	if err := s.sessionRepo.Create(ctx, &models.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateToken JWT 签名和过期时间、session 行、用户状态都要通过
// 发现 session 过期或用户失效时顺带删除该 session
// 所有认证失败对外都是 ErrTokenInvalid，具体原因只写 debug 日志
func (s *sessionService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, xerr.ErrUnauthorized
	}
	now := s.now()

	claims, err := utils.ParseToken(token, s.jwt.SecretKey, s.jwt.Issuer, s.now)
	if err != nil {
		logger.Debug("token rejected: bad signature or claims", zap.Error(err))
		return nil, xerr.ErrTokenInvalid
	}

	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		logger.Debug("token rejected: session not found", zap.Uint64("userID", claims.UserID))
		return nil, xerr.ErrTokenInvalid
	}
	if !now.Before(session.ExpiresAt) {
		s.dropSession(ctx, token, "session expired")
		return nil, xerr.ErrTokenInvalid
	}
	if session.UserID != claims.UserID {
		s.dropSession(ctx, token, "session user mismatch")
		return nil, xerr.ErrTokenInvalid
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	switch {
	case user == nil:
		s.dropSession(ctx, token, "user missing")
		return nil, xerr.ErrTokenInvalid
	case !user.IsActive:
		s.dropSession(ctx, token, "user inactive")
		return nil, xerr.ErrTokenInvalid
	case user.DemoExpired(now):
		s.dropSession(ctx, token, "demo account expired")
		return nil, xerr.ErrTokenInvalid
	}
	return user, nil
}

func (s *sessionService) dropSession(ctx context.Context, token, reason string) {
	logger.Debug("token rejected", zap.String("reason", reason))
	if _, err := s.sessionRepo.DeleteByToken(ctx, token); err != nil {
		logger.Warn("failed to delete stale session", zap.String("reason", reason), zap.Error(err))
	}
}

// Revoke 删除 session，token 随即失效
func (s *sessionService) Revoke(ctx context.Context, token string) error {
	_, err := s.sessionRepo.DeleteByToken(ctx, token)
	return err
}
