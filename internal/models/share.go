package models

import (
	"time"
)

// Share 对应 shares 表
type Share struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Token        string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"` // 对外公开的分享标识
	PasswordHash *string    `gorm:"type:varchar(255)" json:"-"`                         // 可选：分享密码的哈希值
	MaxDownloads *int64     `gorm:"default:null" json:"maxDownloads,omitempty"`
	Downloads    int64      `gorm:"not null;default:0" json:"downloads"`
	ExpiresAt    *time.Time `gorm:"default:null" json:"expiresAt,omitempty"`
	IsActive     bool       `gorm:"not null;index" json:"isActive"`
	FileID       uint64     `gorm:"not null;index" json:"fileId"`
	UserID       uint64     `gorm:"not null;index" json:"userId"`
	Title        string     `gorm:"type:varchar(255);not null;default:''" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// 指定gorm的表名
func (Share) TableName() string {
	return "shares"
}

func (s *Share) HasPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

func (s *Share) Exhausted() bool {
	return s.MaxDownloads != nil && s.Downloads >= *s.MaxDownloads
}

// ShareView 分享的公开信息，不包含密码哈希
type ShareView struct {
	Token        string     `json:"token"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	HasPassword  bool       `json:"hasPassword"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	MaxDownloads *int64     `json:"maxDownloads,omitempty"`
	Downloads    int64      `json:"downloads"`
	CreatedAt    time.Time  `json:"createdAt"`
	File         SharedFile `json:"file"`
}

type SharedFile struct {
	OriginalName string `json:"originalName"`
	Mimetype     string `json:"mimetype"`
	Size         int64  `json:"size"`
}

func NewShareView(s *Share, f *File) *ShareView {
	return &ShareView{
		Token:        s.Token,
		Title:        s.Title,
		Description:  s.Description,
		HasPassword:  s.HasPassword(),
		ExpiresAt:    s.ExpiresAt,
		MaxDownloads: s.MaxDownloads,
		Downloads:    s.Downloads,
		CreatedAt:    s.CreatedAt,
		File: SharedFile{
			OriginalName: f.OriginalName,
			Mimetype:     f.Mimetype,
			Size:         f.Size,
		},
	}
}
