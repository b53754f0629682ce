package pipeline

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"scribe-eye-go/internal/model"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
	"scribe-eye-go/pkg/tasks"
)

// SnapshotReader 读取任务引用的内容快照。
type SnapshotReader interface {
	Get(ctx context.Context, objectKey string) (string, error)
}

// ScriptFinder 用于确认任务引用的版本仍然是最新的。
type ScriptFinder interface {
	FindByID(ctx context.Context, id string) (*model.Script, error)
}

// Processor 处理 sync_document 与 extract_entities 两类任务。
type Processor struct {
	core      *Core
	snapshots SnapshotReader
	scripts   ScriptFinder
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(core *Core, snapshots SnapshotReader, scripts ScriptFinder) *Processor {
	return &Processor{core: core, snapshots: snapshots, scripts: scripts}
}

// Process 是任务处理的主函数。
//
// 剧本已被删除或已有更新的版本时任务直接跳过，较新的任务会完成同样的工作。
// 处理完成后再确认一次剧本仍然存在，处理期间被删除的剧本会清除刚写入的向量和实体。
func (p *Processor) Process(ctx context.Context, task tasks.ScriptTask) error {
	logger := log.With("task", task.Key(), "project_id", task.ProjectID)
	logger.Infof("[Processor] 开始处理任务")

	script, err := p.scripts.FindByID(ctx, task.ScriptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warnf("[Processor] 剧本已删除, 跳过任务")
			return nil
		}
		return apperrors.Wrap(apperrors.ErrDatabase, err, "load script")
	}
	if script.Version > task.Version {
		logger.Infof("[Processor] 剧本已更新到版本 %d, 跳过旧任务", script.Version)
		return nil
	}

	text, err := p.snapshots.Get(ctx, task.ObjectKey)
	if err != nil {
		logger.Errorf("[Processor] 读取内容快照失败, key=%s: %v", task.ObjectKey, err)
		return fmt.Errorf("load snapshot %s: %w", task.ObjectKey, err)
	}

	switch task.Type {
	case tasks.TypeSyncDocument:
		err = p.core.SyncDocument(ctx, task.ScriptID, task.ProjectID, text)
	case tasks.TypeExtractEntities:
		err = p.core.ExtractEntities(ctx, task.ScriptID, task.ProjectID, text)
	default:
		return apperrors.Newf(apperrors.ErrInvalidParameter, "unknown task type %q", task.Type)
	}
	if err != nil {
		return err
	}

	if _, err := p.scripts.FindByID(ctx, task.ScriptID); errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Warnf("[Processor] 剧本在处理期间被删除, 清除本次写入的结果")
		return p.core.ForgetDocument(ctx, task.ScriptID, task.ProjectID)
	} else if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, err, "recheck script")
	}
	logger.Infof("[Processor] 任务处理成功")
	return nil
}
