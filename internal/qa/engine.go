// Package qa 实现基于检索增强生成的项目问答。
package qa

import (
	"context"
	"fmt"
	"strings"

	"scribe-eye-go/internal/config"
	"scribe-eye-go/internal/model"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/llm"
	"scribe-eye-go/pkg/log"
)

// DefaultTopK 是每次问答检索的切块数。
const DefaultTopK = 4

// QueryEmbedder 把问题转换成向量。
type QueryEmbedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Searcher 在向量索引中做带过滤的相似度搜索。
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int, filter model.VectorFilter) ([]model.VectorHit, error)
}

// Engine 串联检索与生成。
type Engine struct {
	embedder QueryEmbedder
	searcher Searcher
	chat     llm.Client
	prompt   config.LLMPromptConfig
	gen      config.LLMGenerationConfig
	topK     int
}

func NewEngine(embedder QueryEmbedder, searcher Searcher, chat llm.Client, llmCfg config.LLMConfig, topK int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		embedder: embedder,
		searcher: searcher,
		chat:     chat,
		prompt:   llmCfg.Prompt,
		gen:      llmCfg.Generation,
		topK:     topK,
	}
}

// Answer 只在 projectID 的切块中检索并回答问题。
// 检索为空时仍然调用模型，系统提示中会写入“无检索结果”的标记。
func (e *Engine) Answer(ctx context.Context, projectID, question string) (*model.QAResult, error) {
	messages, sources, err := e.prepare(ctx, projectID, question)
	if err != nil {
		return nil, err
	}
	answer, err := e.chat.Chat(ctx, messages, e.generationParams())
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return e.result(question, answer, sources), nil
}

// AnswerStream 与 Answer 相同，但把模型的增量输出逐块写入 writer，结束后返回完整结果。
func (e *Engine) AnswerStream(ctx context.Context, projectID, question string, writer llm.MessageWriter) (*model.QAResult, error) {
	messages, sources, err := e.prepare(ctx, projectID, question)
	if err != nil {
		return nil, err
	}
	collector := &collectingWriter{next: writer}
	if err := e.chat.StreamChatMessages(ctx, messages, e.generationParams(), collector); err != nil {
		return nil, fmt.Errorf("stream answer: %w", err)
	}
	return e.result(question, collector.buf.String(), sources), nil
}

func (e *Engine) prepare(ctx context.Context, projectID, question string) ([]llm.Message, []string, error) {
	if strings.TrimSpace(question) == "" {
		return nil, nil, apperrors.New(apperrors.ErrInvalidParameter, "question must not be empty")
	}
	// 检索必须限定在单个项目内，空 projectID 会退化成跨项目检索
	if strings.TrimSpace(projectID) == "" {
		return nil, nil, apperrors.New(apperrors.ErrInvalidParameter, "project id must not be empty")
	}
	vector, err := e.embedder.CreateEmbedding(ctx, question)
	if err != nil {
		return nil, nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := e.searcher.Search(ctx, vector, e.topK, model.VectorFilter{ProjectID: projectID})
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve context: %w", err)
	}
	sources := make([]string, len(hits))
	for i, h := range hits {
		sources[i] = h.Record.TextContent
	}
	log.Infow("[QA] 检索完成", "project_id", projectID, "hits", len(hits))

	messages := []llm.Message{
		{Role: "system", Content: e.buildSystemMessage(sources)},
		{Role: "user", Content: question},
	}
	return messages, sources, nil
}

func (e *Engine) result(question, answer string, sources []string) *model.QAResult {
	if strings.TrimSpace(answer) == "" {
		answer = e.prompt.NoAnswerText
		if answer == "" {
			answer = "Could not find an answer."
		}
	}
	return &model.QAResult{Question: question, Answer: answer, SourceChunks: sources}
}

func (e *Engine) buildSystemMessage(sources []string) string {
	refStart := e.prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := e.prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}
	var sys strings.Builder
	if e.prompt.Rules != "" {
		sys.WriteString(e.prompt.Rules)
		sys.WriteString("\n\n")
	}
	sys.WriteString(refStart)
	sys.WriteString("\n")
	if len(sources) > 0 {
		for i, s := range sources {
			fmt.Fprintf(&sys, "[%d] %s\n", i+1, s)
		}
	} else {
		noRes := e.prompt.NoResultText
		if noRes == "" {
			noRes = "(no relevant passages were found)"
		}
		sys.WriteString(noRes)
		sys.WriteString("\n")
	}
	sys.WriteString(refEnd)
	return sys.String()
}

func (e *Engine) generationParams() *llm.GenerationParams {
	var gp llm.GenerationParams
	if e.gen.Temperature != 0 {
		t := e.gen.Temperature
		gp.Temperature = &t
	}
	if e.gen.TopP != 0 {
		p := e.gen.TopP
		gp.TopP = &p
	}
	if e.gen.MaxTokens != 0 {
		m := e.gen.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

// collectingWriter 在转发分块的同时拼出完整回答。
type collectingWriter struct {
	next llm.MessageWriter
	buf  strings.Builder
}

func (w *collectingWriter) WriteMessage(messageType int, data []byte) error {
	w.buf.Write(data)
	if w.next == nil {
		return nil
	}
	return w.next.WriteMessage(messageType, data)
}
