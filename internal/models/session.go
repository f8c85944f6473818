package models

import "time"

// Session 对应 sessions 表，每签发一个 token 写入一行，删除即吊销
type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"not null;index" json:"userId"`
	Token     string    `gorm:"type:varchar(512);not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Session) TableName() string {
	return "sessions"
}

// SchemaMigration 记录已执行的迁移步骤
type SchemaMigration struct {
	Name      string    `gorm:"type:varchar(128);primaryKey"`
	AppliedAt time.Time `gorm:"not null"`
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}
