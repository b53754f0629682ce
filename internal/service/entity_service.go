package service

import (
	"context"

	"scribe-eye-go/internal/model"
	"scribe-eye-go/internal/repository"
	apperrors "scribe-eye-go/pkg/errors"
)

// EntityService 提供按项目查询实体的能力。
type EntityService interface {
	List(ctx context.Context, projectID string, typ string) ([]model.Entity, error)
}

type entityService struct {
	projects ProjectService
	entities repository.EntityRepository
}

func NewEntityService(projects ProjectService, entities repository.EntityRepository) EntityService {
	return &entityService{projects: projects, entities: entities}
}

// List 返回项目下的实体，typ 可为空或 character/location/event 之一。
func (s *entityService) List(ctx context.Context, projectID string, typ string) ([]model.Entity, error) {
	t := model.EntityType(typ)
	if typ != "" && !t.Valid() {
		return nil, apperrors.Newf(apperrors.ErrInvalidParameter, "unknown entity type %q", typ)
	}
	if err := s.projects.Exists(ctx, projectID); err != nil {
		return nil, err
	}
	entities, err := s.entities.ListByProject(ctx, projectID, t)
	if err != nil {
		return nil, dbError(err, "entities")
	}
	return entities, nil
}
