package models

import (
	"time"
)

// File 对应 files 表，文件内容保存在存储服务中，Path 为存储对象名
type File struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename     string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"filename"` // 存储中的随机文件名
	OriginalName string     `gorm:"type:varchar(255);not null" json:"originalName"`
	Mimetype     string     `gorm:"type:varchar(128);not null;default:'application/octet-stream'" json:"mimetype"`
	Size         int64      `gorm:"not null;default:0" json:"size"`
	Path         string     `gorm:"type:varchar(1024);not null" json:"-"`
	IsEncrypted  bool       `gorm:"not null" json:"isEncrypted"`
	UploadedAt   time.Time  `gorm:"not null" json:"uploadedAt"`
	ExpiresAt    *time.Time `gorm:"default:null;index" json:"expiresAt,omitempty"`
	UserID       uint64     `gorm:"not null;index" json:"userId"`
}

// TableName 指定 GORM 使用的表名
func (File) TableName() string {
	return "files"
}

func (f *File) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && !now.Before(*f.ExpiresAt)
}

// FileWithOwner 管理后台列出文件时附带上传者邮箱
type FileWithOwner struct {
	File
	OwnerEmail string `json:"ownerEmail"`
}
