package models

import (
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User 对应 users 表
type User struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash    string     `gorm:"type:varchar(255);not null" json:"-"` // - 表示不输出到 JSON
	Role            string     `gorm:"type:varchar(16);not null;default:'USER'" json:"role"`
	IsActive        bool       `gorm:"not null" json:"isActive"`
	IsDemo          bool       `gorm:"not null" json:"isDemo"`
	IsTemporaryDemo bool       `gorm:"not null;index" json:"isTemporaryDemo"`
	DemoExpiresAt   *time.Time `gorm:"default:null" json:"demoExpiresAt,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定 GORM 使用的表名
func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DemoExpired 临时演示账号在 demoExpiresAt 之后不可再使用
func (u *User) DemoExpired(now time.Time) bool {
	return u.IsTemporaryDemo && u.DemoExpiresAt != nil && !now.Before(*u.DemoExpiresAt)
}
