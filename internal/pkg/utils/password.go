package utils

import (
	"errors"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("Error hashing password", zap.Error(err))
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash 密码不匹配时返回 false；哈希格式损坏时额外记录错误
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			logger.Error("malformed password hash", zap.Error(err))
		}
		return false
	}
	return true
}
