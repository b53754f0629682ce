package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Script 对应 scripts 表。Version 在每次内容写入时递增，
// 作为后台索引/抽取任务引用的内容快照版本。
type Script struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID string    `gorm:"type:varchar(36);not null;index" json:"project_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Content   string    `gorm:"type:longtext" json:"content"`
	Version   uint      `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Script) TableName() string {
	return "scripts"
}

func (s *Script) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
