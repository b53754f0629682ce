package repository

import (
	"context"

	"gorm.io/gorm"

	"scribe-eye-go/internal/model"
)

// EntityRepository 定义了对 entities 表的数据操作接口。
type EntityRepository interface {
	// ListByProject 返回项目下的实体，typ 为空时不按类型过滤。
	ListByProject(ctx context.Context, projectID string, typ model.EntityType) ([]model.Entity, error)
	// ReplaceForScript 在一个事务内删除 scriptID 的旧实体并写入新实体。
	ReplaceForScript(ctx context.Context, scriptID string, entities []model.Entity) error
	DeleteByScript(ctx context.Context, scriptID string) error
	DeleteByProject(ctx context.Context, projectID string) error
}

type entityRepository struct {
	db *gorm.DB
}

// NewEntityRepository 创建一个新的 EntityRepository 实例。
func NewEntityRepository(db *gorm.DB) EntityRepository {
	return &entityRepository{db: db}
}

func (r *entityRepository) ListByProject(ctx context.Context, projectID string, typ model.EntityType) ([]model.Entity, error) {
	var entities []model.Entity
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	err := q.Order("created_at ASC").Find(&entities).Error
	return entities, err
}

func (r *entityRepository) ReplaceForScript(ctx context.Context, scriptID string, entities []model.Entity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("script_id = ?", scriptID).Delete(&model.Entity{}).Error; err != nil {
			return err
		}
		if len(entities) == 0 {
			return nil
		}
		return tx.CreateInBatches(entities, 100).Error
	})
}

func (r *entityRepository) DeleteByScript(ctx context.Context, scriptID string) error {
	return r.db.WithContext(ctx).Where("script_id = ?", scriptID).Delete(&model.Entity{}).Error
}

func (r *entityRepository) DeleteByProject(ctx context.Context, projectID string) error {
	return r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&model.Entity{}).Error
}
