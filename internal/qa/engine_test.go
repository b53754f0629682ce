package qa

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe-eye-go/internal/chunker"
	"scribe-eye-go/internal/config"
	"scribe-eye-go/internal/indexer"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/llm"
	"scribe-eye-go/pkg/memindex"
)

// bagOfWords 为每个新单词分配一个维度，词重叠越多余弦相似度越高。
type bagOfWords struct {
	mu    sync.Mutex
	vocab map[string]int
}

func newBagOfWords() *bagOfWords { return &bagOfWords{vocab: map[string]int{}} }

func (b *bagOfWords) vector(text string) []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := make([]float32, 128)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,?!")
		i, ok := b.vocab[w]
		if !ok {
			i = len(b.vocab) % len(v)
			b.vocab[w] = i
		}
		v[i]++
	}
	return v
}

func (b *bagOfWords) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	return b.vector(text), nil
}

func (b *bagOfWords) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = b.vector(t)
	}
	return out, nil
}

// fakeChat 记录收到的消息，并根据系统提示里的上下文给出回答。
type fakeChat struct {
	answer   func(system string) string
	messages []llm.Message
	gen      *llm.GenerationParams
	err      error
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	f.messages = messages
	f.gen = gen
	if f.err != nil {
		return "", f.err
	}
	return f.answer(messages[0].Content), nil
}

func (f *fakeChat) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, w llm.MessageWriter) error {
	full, err := f.Chat(ctx, messages, gen)
	if err != nil {
		return err
	}
	for _, part := range strings.SplitAfter(full, " ") {
		if err := w.WriteMessage(1, []byte(part)); err != nil {
			return err
		}
	}
	return nil
}

type collect struct{ parts []string }

func (c *collect) WriteMessage(_ int, data []byte) error {
	c.parts = append(c.parts, string(data))
	return nil
}

func millAnswer(system string) string {
	if strings.Contains(system, "old mill") {
		return "They meet at the old mill."
	}
	return ""
}

func llmConfig() config.LLMConfig {
	return config.LLMConfig{
		Generation: config.LLMGenerationConfig{Temperature: 0.3},
		Prompt: config.LLMPromptConfig{
			Rules:        "Answer only from the references.",
			RefStart:     "<<REF>>",
			RefEnd:       "<<END>>",
			NoResultText: "(no results)",
			NoAnswerText: "Could not find an answer.",
		},
	}
}

func setup(t *testing.T, chat *fakeChat) (*Engine, *indexer.Indexer) {
	t.Helper()
	idx := memindex.New()
	s, err := chunker.New(1000, 200)
	require.NoError(t, err)
	emb := newBagOfWords()
	ix := indexer.New(s, emb, idx, "bow")
	return NewEngine(emb, idx, chat, llmConfig(), DefaultTopK), ix
}

func TestAnswer_AliceScenario(t *testing.T) {
	ctx := context.Background()
	chat := &fakeChat{answer: millAnswer}
	engine, ix := setup(t, chat)

	require.NoError(t, ix.Sync(ctx, "s1", "p1", "Alice meets Bob at the old mill during a storm."))

	res, err := engine.Answer(ctx, "p1", "Where do Alice and Bob meet?")
	require.NoError(t, err)
	assert.Equal(t, "Where do Alice and Bob meet?", res.Question)
	assert.Contains(t, res.Answer, "mill")
	assert.Equal(t, []string{"Alice meets Bob at the old mill during a storm."}, res.SourceChunks)

	require.Len(t, chat.messages, 2)
	assert.Equal(t, "system", chat.messages[0].Role)
	assert.Contains(t, chat.messages[0].Content, "Answer only from the references.")
	assert.Contains(t, chat.messages[0].Content, "<<REF>>\n[1] Alice meets Bob")
	assert.Equal(t, "user", chat.messages[1].Role)
	require.NotNil(t, chat.gen)
	assert.InDelta(t, 0.3, *chat.gen.Temperature, 1e-9)
}

func TestAnswer_ProjectIsolation(t *testing.T) {
	ctx := context.Background()
	chat := &fakeChat{answer: millAnswer}
	engine, ix := setup(t, chat)

	require.NoError(t, ix.Sync(ctx, "s1", "p1", "Alice meets Bob at the old mill during a storm."))
	require.NoError(t, ix.Sync(ctx, "s2", "p2", "Carol sails across the bay at dawn."))

	res, err := engine.Answer(ctx, "p2", "Where do Alice and Bob meet?")
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol sails across the bay at dawn."}, res.SourceChunks)
	assert.NotContains(t, chat.messages[0].Content, "Alice")
}

func TestAnswer_TopKAndRankOrder(t *testing.T) {
	ctx := context.Background()
	chat := &fakeChat{answer: func(string) string { return "ok" }}
	engine, ix := setup(t, chat)

	docs := []string{
		"storm storm storm mill",
		"storm storm mill",
		"storm mill",
		"mill",
		"nothing relevant here",
		"completely different words",
	}
	for i, d := range docs {
		require.NoError(t, ix.Sync(ctx, string(rune('a'+i)), "p1", d))
	}

	res, err := engine.Answer(ctx, "p1", "storm storm storm mill")
	require.NoError(t, err)
	require.Len(t, res.SourceChunks, 4)
	assert.Equal(t, "storm storm storm mill", res.SourceChunks[0])
}

func TestAnswer_NoContextStillCallsModel(t *testing.T) {
	chat := &fakeChat{answer: millAnswer}
	engine, _ := setup(t, chat)

	res, err := engine.Answer(context.Background(), "empty-project", "Anything?")
	require.NoError(t, err)
	assert.Empty(t, res.SourceChunks)
	assert.Equal(t, "Could not find an answer.", res.Answer)
	require.NotEmpty(t, chat.messages)
	assert.Contains(t, chat.messages[0].Content, "(no results)")
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	chat := &fakeChat{answer: millAnswer}
	engine, _ := setup(t, chat)

	_, err := engine.Answer(context.Background(), "p1", "   ")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParameter))
	assert.Nil(t, chat.messages)
}

func TestAnswer_BlankProjectDoesNotSearchAcrossProjects(t *testing.T) {
	ctx := context.Background()
	chat := &fakeChat{answer: millAnswer}
	engine, ix := setup(t, chat)

	require.NoError(t, ix.Sync(ctx, "s-b", "project-B", "Secret of project B: the vault code is 1234."))

	for _, projectID := range []string{"", "  "} {
		res, err := engine.Answer(ctx, projectID, "what is the vault code")
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParameter))
		assert.Nil(t, res)
	}
	assert.Nil(t, chat.messages)

	_, err := engine.AnswerStream(ctx, "", "what is the vault code", &collect{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParameter))
}

func TestAnswer_ModelFailure(t *testing.T) {
	chat := &fakeChat{err: apperrors.New(apperrors.ErrProviderUnavailable, "503")}
	engine, _ := setup(t, chat)

	_, err := engine.Answer(context.Background(), "p1", "question")
	require.Error(t, err)
	assert.True(t, apperrors.Retryable(err))
}

func TestAnswerStream_ForwardsChunks(t *testing.T) {
	ctx := context.Background()
	chat := &fakeChat{answer: millAnswer}
	engine, ix := setup(t, chat)
	require.NoError(t, ix.Sync(ctx, "s1", "p1", "Alice meets Bob at the old mill during a storm."))

	w := &collect{}
	res, err := engine.AnswerStream(ctx, "p1", "Where do they meet?", w)
	require.NoError(t, err)
	assert.Equal(t, "They meet at the old mill.", strings.Join(w.parts, ""))
	assert.Equal(t, "They meet at the old mill.", res.Answer)
	assert.Len(t, res.SourceChunks, 1)
}

func TestNewEngine_DefaultTopK(t *testing.T) {
	e := NewEngine(newBagOfWords(), memindex.New(), &fakeChat{}, config.LLMConfig{}, 0)
	assert.Equal(t, DefaultTopK, e.topK)
}
