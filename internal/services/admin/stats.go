package admin

import (
	"context"

	"github.com/3Eeeecho/go-fileshare/internal/models"
	"github.com/3Eeeecho/go-fileshare/internal/repositories"
)

const topUploadersLimit = 10

type StatsService interface {
	SystemStats(ctx context.Context) (*models.SystemStats, error)
}

type statsService struct {
	userRepo    repositories.UserRepository
	fileRepo    repositories.FileRepository
	shareRepo   repositories.ShareRepository
	sessionRepo repositories.SessionRepository
}

func NewStatsService(
	userRepo repositories.UserRepository,
	fileRepo repositories.FileRepository,
	shareRepo repositories.ShareRepository,
	sessionRepo repositories.SessionRepository,
) StatsService {
	return &statsService{userRepo: userRepo, fileRepo: fileRepo, shareRepo: shareRepo, sessionRepo: sessionRepo}
}

func (s *statsService) SystemStats(ctx context.Context) (*models.SystemStats, error) {
	users, err := s.userRepo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	files, bytes, err := s.fileRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	shares, err := s.shareRepo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessionRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.fileRepo.TopUploaders(ctx, topUploadersLimit)
	if err != nil {
		return nil, err
	}
	if top == nil {
		top = []models.UserStorage{}
	}

	return &models.SystemStats{
		Users:          users.Total,
		Admins:         users.Admins,
		ActiveUsers:    users.Active,
		DemoUsers:      users.Demo,
		Files:          files,
		TotalBytes:     bytes,
		Shares:         shares.Total,
		ActiveShares:   shares.Active,
		TotalDownloads: shares.Downloads,
		Sessions:       sessions,
		TopUploaders:   top,
	}, nil
}
