package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"scribe-eye-go/internal/chunker"
	"scribe-eye-go/internal/config"
	"scribe-eye-go/internal/extractor"
	"scribe-eye-go/internal/indexer"
	"scribe-eye-go/internal/model"
	"scribe-eye-go/internal/qa"
	"scribe-eye-go/internal/worker"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/llm"
	"scribe-eye-go/pkg/memindex"
	"scribe-eye-go/pkg/storage"
	"scribe-eye-go/pkg/tasks"
)

// wordEmbedder 为每个单词分配一个维度。
type wordEmbedder struct {
	mu      sync.Mutex
	vocab   map[string]int
	// onEmbed 在每次批量向量化时调用
	onEmbed func()
}

func (w *wordEmbedder) vec(text string) []float32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := make([]float32, 256)
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,?!")
		i, ok := w.vocab[f]
		if !ok {
			i = len(w.vocab) % len(v)
			w.vocab[f] = i
		}
		v[i]++
	}
	return v
}

func (w *wordEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	return w.vec(text), nil
}

func (w *wordEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if w.onEmbed != nil {
		w.onEmbed()
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = w.vec(t)
	}
	return out, nil
}

// literaryModel 对 Alice 场景返回固定的抽取结果。
type literaryModel struct {
	onCall func()
}

func (m *literaryModel) GenerateStructured(_ context.Context, req llm.StructuredRequest, out any) error {
	if m.onCall != nil {
		m.onCall()
	}
	if !strings.Contains(req.Input, "Alice") {
		return json.Unmarshal([]byte(`{"characters":[],"locations":[],"events":[]}`), out)
	}
	return json.Unmarshal([]byte(`{
		"characters":[{"name":"Alice","description":"","attributes":[]},{"name":"Bob","description":"","attributes":[]}],
		"locations":[{"name":"old mill","description":"","attributes":[]}],
		"events":[{"name":"storm","description":"","attributes":[]}]}`), out)
}

type contextChat struct{}

func (contextChat) Chat(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	if strings.Contains(messages[0].Content, "old mill") {
		return "At the old mill.", nil
	}
	return "", nil
}

func (c contextChat) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, w llm.MessageWriter) error {
	s, _ := c.Chat(ctx, messages, gen)
	return w.WriteMessage(1, []byte(s))
}

type entityStore struct {
	mu       sync.Mutex
	byScript map[string][]model.Entity
}

func (s *entityStore) ReplaceForScript(_ context.Context, scriptID string, entities []model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byScript[scriptID] = entities
	return nil
}

func (s *entityStore) get(scriptID string) []model.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byScript[scriptID]
}

type scriptTable struct {
	mu      sync.Mutex
	scripts map[string]*model.Script
}

func (t *scriptTable) FindByID(_ context.Context, id string) (*model.Script, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.scripts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (t *scriptTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.scripts, id)
}

func (t *scriptTable) put(s *model.Script) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scripts[s.ID] = s
}

type harness struct {
	core      *Core
	processor *Processor
	emb       *wordEmbedder
	model     *literaryModel
	vectors   *memindex.Index
	entities  *entityStore
	scripts   *scriptTable
	snapshots *storage.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	splitter, err := chunker.New(1000, 200)
	require.NoError(t, err)
	emb := &wordEmbedder{vocab: map[string]int{}}
	vectors := memindex.New()
	entities := &entityStore{byScript: map[string][]model.Entity{}}
	scripts := &scriptTable{scripts: map[string]*model.Script{}}
	snapshots := storage.NewMemoryStore()
	lm := &literaryModel{}

	core := NewCore(
		indexer.New(splitter, emb, vectors, "words"),
		extractor.New(lm, entities),
		qa.NewEngine(emb, vectors, contextChat{}, config.LLMConfig{}, qa.DefaultTopK),
	)
	return &harness{
		core:      core,
		processor: NewProcessor(core, snapshots, scripts),
		emb:       emb,
		model:     lm,
		vectors:   vectors,
		entities:  entities,
		scripts:   scripts,
		snapshots: snapshots,
	}
}

// write 模拟一次内容写入：保存剧本和快照，返回需要投递的任务。
func (h *harness) write(t *testing.T, id, projectID, content string, version uint) []tasks.ScriptTask {
	t.Helper()
	h.scripts.put(&model.Script{ID: id, ProjectID: projectID, Content: content, Version: version})
	key, err := h.snapshots.Put(context.Background(), id, version, content)
	require.NoError(t, err)
	return tasks.ForScript(id, projectID, version, key)
}

func TestEndToEnd_AliceScenario(t *testing.T) {
	h := newHarness(t)
	pool := worker.NewPool(h.processor, 2, 8, 3)
	pool.Start(context.Background())

	ts := h.write(t, "s1", "p1", "Alice meets Bob at the old mill during a storm.", 1)
	require.NoError(t, pool.Enqueue(context.Background(), ts...))
	pool.Stop()

	got := h.entities.get("s1")
	require.Len(t, got, 4)
	var types []model.EntityType
	for _, e := range got {
		types = append(types, e.Type)
	}
	assert.Equal(t, []model.EntityType{"character", "character", "location", "event"}, types)

	res, err := h.core.Ask(context.Background(), "p1", "Where do Alice and Bob meet?")
	require.NoError(t, err)
	assert.Contains(t, res.Answer, "mill")
	assert.Equal(t, []string{"Alice meets Bob at the old mill during a storm."}, res.SourceChunks)
}

func TestProcess_SkipsStaleVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	old := h.write(t, "s1", "p1", "Alice meets Bob at the old mill during a storm.", 1)
	h.write(t, "s1", "p1", "Carol sails at dawn.", 2)

	require.NoError(t, h.processor.Process(ctx, old[0]))
	assert.Zero(t, h.vectors.Len())
}

func TestProcess_SkipsDeletedScript(t *testing.T) {
	h := newHarness(t)
	ts := h.write(t, "s1", "p1", "text", 1)
	h.scripts.remove("s1")

	require.NoError(t, h.processor.Process(context.Background(), ts[0]))
	assert.Zero(t, h.vectors.Len())
}

func TestProcess_ScriptDeletedDuringSync(t *testing.T) {
	h := newHarness(t)
	ts := h.write(t, "s1", "p1", "Alice meets Bob at the old mill during a storm.", 1)
	h.emb.onEmbed = func() { h.scripts.remove("s1") }

	require.NoError(t, h.processor.Process(context.Background(), ts[0]))
	assert.Zero(t, h.vectors.Len())
}

func TestProcess_ScriptDeletedDuringExtraction(t *testing.T) {
	h := newHarness(t)
	ts := h.write(t, "s1", "p1", "Alice meets Bob at the old mill during a storm.", 1)
	h.model.onCall = func() { h.scripts.remove("s1") }

	require.NoError(t, h.processor.Process(context.Background(), ts[1]))
	assert.Empty(t, h.entities.get("s1"))
}

func TestProcess_EmptyContentClearsVectors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, task := range h.write(t, "s1", "p1", "Alice meets Bob at the old mill during a storm.", 1) {
		require.NoError(t, h.processor.Process(ctx, task))
	}
	require.Equal(t, 1, h.vectors.Len())

	for _, task := range h.write(t, "s1", "p1", "", 2) {
		require.NoError(t, h.processor.Process(ctx, task))
	}
	assert.Zero(t, h.vectors.Len())
	// 空文本不触发抽取，旧实体保留
	assert.Len(t, h.entities.get("s1"), 4)
}

func TestProcess_MissingSnapshot(t *testing.T) {
	h := newHarness(t)
	h.scripts.put(&model.Script{ID: "s1", ProjectID: "p1", Version: 1})

	err := h.processor.Process(context.Background(), tasks.ScriptTask{
		Type: tasks.TypeSyncDocument, ScriptID: "s1", ProjectID: "p1", Version: 1, ObjectKey: "scripts/s1/1.txt",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestProcess_UnknownType(t *testing.T) {
	h := newHarness(t)
	ts := h.write(t, "s1", "p1", "text", 1)
	ts[0].Type = "reindex_everything"

	err := h.processor.Process(context.Background(), ts[0])
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParameter))
}
