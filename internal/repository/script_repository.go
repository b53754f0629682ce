package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scribe-eye-go/internal/model"
)

// ScriptRepository 定义了对 scripts 表的数据操作接口。
type ScriptRepository interface {
	Create(ctx context.Context, script *model.Script) error
	FindByID(ctx context.Context, id string) (*model.Script, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Script, error)
	// UpdateContent 更新标题和内容并递增 Version，返回更新后的记录。
	UpdateContent(ctx context.Context, id, title, content string) (*model.Script, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
}

type scriptRepository struct {
	db *gorm.DB
}

// NewScriptRepository 创建一个新的 ScriptRepository 实例。
func NewScriptRepository(db *gorm.DB) ScriptRepository {
	return &scriptRepository{db: db}
}

func (r *scriptRepository) Create(ctx context.Context, script *model.Script) error {
	if script.Version == 0 {
		script.Version = 1
	}
	return r.db.WithContext(ctx).Create(script).Error
}

func (r *scriptRepository) FindByID(ctx context.Context, id string) (*model.Script, error) {
	var script model.Script
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&script).Error; err != nil {
		return nil, err
	}
	return &script, nil
}

func (r *scriptRepository) ListByProject(ctx context.Context, projectID string) ([]model.Script, error) {
	var scripts []model.Script
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&scripts).Error
	return scripts, err
}

func (r *scriptRepository) UpdateContent(ctx context.Context, id, title, content string) (*model.Script, error) {
	var script model.Script
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 行锁保证并发更新时 Version 严格递增
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&script).Error; err != nil {
			return err
		}
		script.Title = title
		script.Content = content
		script.Version++
		return tx.Model(&script).Select("title", "content", "version", "updated_at").Updates(&script).Error
	})
	if err != nil {
		return nil, err
	}
	return &script, nil
}

func (r *scriptRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Script{})
	return res.RowsAffected > 0, res.Error
}

func (r *scriptRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("project_id = ?", projectID).Delete(&model.Script{})
	return res.RowsAffected, res.Error
}
