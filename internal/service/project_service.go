package service

import (
	"context"
	"strings"

	"scribe-eye-go/internal/model"
	"scribe-eye-go/internal/repository"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
	"scribe-eye-go/pkg/storage"
)

// VectorCleaner 删除向量索引中的记录，由 indexer.Indexer 实现。
type VectorCleaner interface {
	DeleteScript(ctx context.Context, documentID string) error
	DeleteProject(ctx context.Context, projectID string) error
}

// ProjectService 接口定义了项目管理相关的业务操作。
type ProjectService interface {
	Create(ctx context.Context, title, description string) (*model.Project, error)
	Get(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
	Update(ctx context.Context, id, title, description string) (*model.Project, error)
	// Delete 删除项目并级联删除剧本、实体、向量和内容快照。
	Delete(ctx context.Context, id string) error
	// Exists 供问答和实体查询在调用核心逻辑前确认项目存在。
	Exists(ctx context.Context, id string) error
}

type projectService struct {
	projects  repository.ProjectRepository
	scripts   repository.ScriptRepository
	entities  repository.EntityRepository
	vectors   VectorCleaner
	snapshots storage.SnapshotStore
}

// NewProjectService 创建一个新的 ProjectService 实例。
func NewProjectService(
	projects repository.ProjectRepository,
	scripts repository.ScriptRepository,
	entities repository.EntityRepository,
	vectors VectorCleaner,
	snapshots storage.SnapshotStore,
) ProjectService {
	return &projectService{
		projects:  projects,
		scripts:   scripts,
		entities:  entities,
		vectors:   vectors,
		snapshots: snapshots,
	}
}

func (s *projectService) Create(ctx context.Context, title, description string) (*model.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParameter, "title must not be empty")
	}
	project := &model.Project{Title: title, Description: description}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, dbError(err, "project")
	}
	return project, nil
}

func (s *projectService) Get(ctx context.Context, id string) (*model.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, dbError(err, "project "+id)
	}
	return project, nil
}

func (s *projectService) List(ctx context.Context) ([]model.Project, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, dbError(err, "projects")
	}
	return projects, nil
}

func (s *projectService) Update(ctx context.Context, id, title, description string) (*model.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParameter, "title must not be empty")
	}
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Title = title
	project.Description = description
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, dbError(err, "project "+id)
	}
	return project, nil
}

// Delete 依次删除各个存储中的数据，跨存储不保证原子性。
// 项目记录最先删除，之后的清理失败只记录日志。
func (s *projectService) Delete(ctx context.Context, id string) error {
	scripts, err := s.scripts.ListByProject(ctx, id)
	if err != nil {
		return dbError(err, "scripts of project "+id)
	}
	deleted, err := s.projects.Delete(ctx, id)
	if err != nil {
		return dbError(err, "project "+id)
	}
	if !deleted {
		return apperrors.Newf(apperrors.ErrNotFound, "project %s not found", id)
	}

	logger := log.With("project_id", id)
	if _, err := s.scripts.DeleteByProject(ctx, id); err != nil {
		logger.Errorf("删除项目剧本失败: %v", err)
	}
	if err := s.entities.DeleteByProject(ctx, id); err != nil {
		logger.Errorf("删除项目实体失败: %v", err)
	}
	if err := s.vectors.DeleteProject(ctx, id); err != nil {
		logger.Errorf("删除项目向量失败: %v", err)
	}
	for _, script := range scripts {
		if err := s.snapshots.DeleteScript(ctx, script.ID); err != nil {
			logger.Errorf("删除剧本 %s 的内容快照失败: %v", script.ID, err)
		}
	}
	logger.Infof("项目已删除, 级联删除 %d 个剧本", len(scripts))
	return nil
}

func (s *projectService) Exists(ctx context.Context, id string) error {
	_, err := s.Get(ctx, id)
	return err
}
