package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityType 是实体的类别，取抽取结果分类名的单数形式。
type EntityType string

const (
	EntityTypeCharacter EntityType = "character"
	EntityTypeLocation  EntityType = "location"
	EntityTypeEvent     EntityType = "event"
)

// Valid 判断类型是否为已知类别。
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeCharacter, EntityTypeLocation, EntityTypeEvent:
		return true
	}
	return false
}

// Entity 对应 entities 表。同一个 script_id 下的实体集合始终来自同一次抽取。
type Entity struct {
	ID          string                 `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID   string                 `gorm:"type:varchar(36);not null;index" json:"project_id"`
	ScriptID    string                 `gorm:"type:varchar(36);not null;index" json:"script_id"`
	Type        EntityType             `gorm:"type:varchar(16);not null;index" json:"type"`
	Name        string                 `gorm:"type:varchar(255);not null" json:"name"`
	Description string                 `gorm:"type:text" json:"description"`
	Attributes  map[string]interface{} `gorm:"serializer:json;type:json" json:"attributes"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (Entity) TableName() string {
	return "entities"
}

func (e *Entity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
