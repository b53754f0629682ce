package service

import (
	"context"
	"strings"

	"scribe-eye-go/internal/model"
	"scribe-eye-go/internal/repository"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
	"scribe-eye-go/pkg/storage"
	"scribe-eye-go/pkg/tasks"
)

// ScriptService 接口定义了剧本管理相关的业务操作。
// 创建和更新会保存内容快照，并投递向量同步与实体抽取两个后台任务。
type ScriptService interface {
	Create(ctx context.Context, projectID, title, content string) (*model.Script, error)
	Get(ctx context.Context, id string) (*model.Script, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Script, error)
	Update(ctx context.Context, id, title, content string) (*model.Script, error)
	Delete(ctx context.Context, id string) error
}

type scriptService struct {
	projects  ProjectService
	scripts   repository.ScriptRepository
	entities  repository.EntityRepository
	vectors   VectorCleaner
	snapshots storage.SnapshotStore
	queue     tasks.Enqueuer
}

// NewScriptService 创建一个新的 ScriptService 实例。
func NewScriptService(
	projects ProjectService,
	scripts repository.ScriptRepository,
	entities repository.EntityRepository,
	vectors VectorCleaner,
	snapshots storage.SnapshotStore,
	queue tasks.Enqueuer,
) ScriptService {
	return &scriptService{
		projects:  projects,
		scripts:   scripts,
		entities:  entities,
		vectors:   vectors,
		snapshots: snapshots,
		queue:     queue,
	}
}

func (s *scriptService) Create(ctx context.Context, projectID, title, content string) (*model.Script, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParameter, "title must not be empty")
	}
	if err := s.projects.Exists(ctx, projectID); err != nil {
		return nil, err
	}
	script := &model.Script{ProjectID: projectID, Title: title, Content: content, Version: 1}
	if err := s.scripts.Create(ctx, script); err != nil {
		return nil, dbError(err, "script")
	}
	if err := s.ingest(ctx, script); err != nil {
		return nil, err
	}
	return script, nil
}

func (s *scriptService) Get(ctx context.Context, id string) (*model.Script, error) {
	script, err := s.scripts.FindByID(ctx, id)
	if err != nil {
		return nil, dbError(err, "script "+id)
	}
	return script, nil
}

func (s *scriptService) ListByProject(ctx context.Context, projectID string) ([]model.Script, error) {
	if err := s.projects.Exists(ctx, projectID); err != nil {
		return nil, err
	}
	scripts, err := s.scripts.ListByProject(ctx, projectID)
	if err != nil {
		return nil, dbError(err, "scripts")
	}
	return scripts, nil
}

func (s *scriptService) Update(ctx context.Context, id, title, content string) (*model.Script, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParameter, "title must not be empty")
	}
	script, err := s.scripts.UpdateContent(ctx, id, title, content)
	if err != nil {
		return nil, dbError(err, "script "+id)
	}
	if err := s.ingest(ctx, script); err != nil {
		return nil, err
	}
	return script, nil
}

// Delete 删除剧本及其实体、向量和内容快照。
func (s *scriptService) Delete(ctx context.Context, id string) error {
	deleted, err := s.scripts.Delete(ctx, id)
	if err != nil {
		return dbError(err, "script "+id)
	}
	if !deleted {
		return apperrors.Newf(apperrors.ErrNotFound, "script %s not found", id)
	}

	logger := log.With("script_id", id)
	if err := s.entities.DeleteByScript(ctx, id); err != nil {
		logger.Errorf("删除剧本实体失败: %v", err)
	}
	if err := s.vectors.DeleteScript(ctx, id); err != nil {
		logger.Errorf("删除剧本向量失败: %v", err)
	}
	if err := s.snapshots.DeleteScript(ctx, id); err != nil {
		logger.Errorf("删除剧本内容快照失败: %v", err)
	}
	return nil
}

// ingest 保存当前版本的内容快照并投递后台任务。
// 剧本记录已经写入，这里失败时返回可重试错误，客户端重新提交即可。
func (s *scriptService) ingest(ctx context.Context, script *model.Script) error {
	key, err := s.snapshots.Put(ctx, script.ID, script.Version, script.Content)
	if err != nil {
		log.Errorf("保存剧本 %s 版本 %d 的内容快照失败: %v", script.ID, script.Version, err)
		return err
	}
	ts := tasks.ForScript(script.ID, script.ProjectID, script.Version, key)
	if err := s.queue.Enqueue(ctx, ts...); err != nil {
		log.Errorf("投递剧本 %s 的后台任务失败: %v", script.ID, err)
		return apperrors.Wrap(apperrors.ErrQueue, err, "script saved but ingestion could not be queued")
	}
	log.Infow("已投递剧本处理任务", "script_id", script.ID, "version", script.Version)
	return nil
}
