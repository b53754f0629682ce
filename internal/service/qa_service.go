package service

import (
	"context"

	"scribe-eye-go/internal/model"
	"scribe-eye-go/pkg/llm"
)

// Asker 是问答核心的入口，由 pipeline.Core 实现。
type Asker interface {
	Ask(ctx context.Context, projectID, question string) (*model.QAResult, error)
	AskStream(ctx context.Context, projectID, question string, writer llm.MessageWriter) (*model.QAResult, error)
}

// QAService 在调用问答核心前确认项目存在，不存在的项目返回 ErrNotFound。
type QAService interface {
	Ask(ctx context.Context, projectID, question string) (*model.QAResult, error)
	AskStream(ctx context.Context, projectID, question string, writer llm.MessageWriter) (*model.QAResult, error)
}

type qaService struct {
	projects ProjectService
	asker    Asker
}

func NewQAService(projects ProjectService, asker Asker) QAService {
	return &qaService{projects: projects, asker: asker}
}

func (s *qaService) Ask(ctx context.Context, projectID, question string) (*model.QAResult, error) {
	if err := s.projects.Exists(ctx, projectID); err != nil {
		return nil, err
	}
	return s.asker.Ask(ctx, projectID, question)
}

func (s *qaService) AskStream(ctx context.Context, projectID, question string, writer llm.MessageWriter) (*model.QAResult, error) {
	if err := s.projects.Exists(ctx, projectID); err != nil {
		return nil, err
	}
	return s.asker.AskStream(ctx, projectID, question, writer)
}
