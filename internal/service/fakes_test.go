package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"scribe-eye-go/internal/model"
	"scribe-eye-go/pkg/llm"
	"scribe-eye-go/pkg/tasks"
)

type fakeProjects struct {
	rows map[string]*model.Project
}

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	p.ID = uuid.NewString()
	f.rows[p.ID] = p
	return nil
}

func (f *fakeProjects) FindByID(_ context.Context, id string) (*model.Project, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) List(context.Context) ([]model.Project, error) {
	var out []model.Project
	for _, p := range f.rows {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProjects) Update(_ context.Context, p *model.Project) error {
	f.rows[p.ID] = p
	return nil
}

func (f *fakeProjects) Delete(_ context.Context, id string) (bool, error) {
	_, ok := f.rows[id]
	delete(f.rows, id)
	return ok, nil
}

type fakeScripts struct {
	rows map[string]*model.Script
}

func (f *fakeScripts) Create(_ context.Context, s *model.Script) error {
	s.ID = uuid.NewString()
	f.rows[s.ID] = s
	return nil
}

func (f *fakeScripts) FindByID(_ context.Context, id string) (*model.Script, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeScripts) ListByProject(_ context.Context, projectID string) ([]model.Script, error) {
	var out []model.Script
	for _, s := range f.rows {
		if s.ProjectID == projectID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeScripts) UpdateContent(_ context.Context, id, title, content string) (*model.Script, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s.Title, s.Content = title, content
	s.Version++
	cp := *s
	return &cp, nil
}

func (f *fakeScripts) Delete(_ context.Context, id string) (bool, error) {
	_, ok := f.rows[id]
	delete(f.rows, id)
	return ok, nil
}

func (f *fakeScripts) DeleteByProject(_ context.Context, projectID string) (int64, error) {
	var n int64
	for id, s := range f.rows {
		if s.ProjectID == projectID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

type fakeEntities struct {
	rows []model.Entity
}

func (f *fakeEntities) ListByProject(_ context.Context, projectID string, typ model.EntityType) ([]model.Entity, error) {
	var out []model.Entity
	for _, e := range f.rows {
		if e.ProjectID == projectID && (typ == "" || e.Type == typ) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntities) ReplaceForScript(_ context.Context, scriptID string, entities []model.Entity) error {
	_ = f.DeleteByScript(context.Background(), scriptID)
	f.rows = append(f.rows, entities...)
	return nil
}

func (f *fakeEntities) DeleteByScript(_ context.Context, scriptID string) error {
	kept := f.rows[:0]
	for _, e := range f.rows {
		if e.ScriptID != scriptID {
			kept = append(kept, e)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeEntities) DeleteByProject(_ context.Context, projectID string) error {
	kept := f.rows[:0]
	for _, e := range f.rows {
		if e.ProjectID != projectID {
			kept = append(kept, e)
		}
	}
	f.rows = kept
	return nil
}

type fakeVectors struct {
	deletedScripts  []string
	deletedProjects []string
}

func (f *fakeVectors) DeleteScript(_ context.Context, id string) error {
	f.deletedScripts = append(f.deletedScripts, id)
	return nil
}

func (f *fakeVectors) DeleteProject(_ context.Context, id string) error {
	f.deletedProjects = append(f.deletedProjects, id)
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []tasks.ScriptTask
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, ts ...tasks.ScriptTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, ts...)
	return nil
}

type fakeAsker struct {
	calls int
}

func (a *fakeAsker) Ask(_ context.Context, projectID, question string) (*model.QAResult, error) {
	a.calls++
	return &model.QAResult{Question: question, Answer: "answer for " + projectID, SourceChunks: []string{}}, nil
}

func (a *fakeAsker) AskStream(ctx context.Context, projectID, question string, w llm.MessageWriter) (*model.QAResult, error) {
	res, _ := a.Ask(ctx, projectID, question)
	return res, w.WriteMessage(1, []byte(res.Answer))
}
