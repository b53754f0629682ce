// Package pipeline 把切块、向量化、抽取与问答组合成对外的三个入口，并负责处理后台任务。
package pipeline

import (
	"context"

	"scribe-eye-go/internal/model"
	"scribe-eye-go/pkg/llm"
)

// DocumentIndexer 由 indexer.Indexer 实现。
type DocumentIndexer interface {
	Sync(ctx context.Context, documentID, projectID, text string) error
}

// EntityExtractor 由 extractor.Extractor 实现。
type EntityExtractor interface {
	ExtractAndStore(ctx context.Context, documentID, projectID, text string) (int, error)
	Clear(ctx context.Context, documentID string) error
}

// Answerer 由 qa.Engine 实现。
type Answerer interface {
	Answer(ctx context.Context, projectID, question string) (*model.QAResult, error)
	AnswerStream(ctx context.Context, projectID, question string, writer llm.MessageWriter) (*model.QAResult, error)
}

// Core 持有所有外部能力的句柄，由 main 构造并注入。
type Core struct {
	indexer   DocumentIndexer
	extractor EntityExtractor
	answerer  Answerer
}

func NewCore(indexer DocumentIndexer, extractor EntityExtractor, answerer Answerer) *Core {
	return &Core{indexer: indexer, extractor: extractor, answerer: answerer}
}

// SyncDocument 让向量索引反映文档的当前文本。
func (c *Core) SyncDocument(ctx context.Context, documentID, projectID, text string) error {
	return c.indexer.Sync(ctx, documentID, projectID, text)
}

// ExtractEntities 重新抽取文档的实体并替换旧集合。
func (c *Core) ExtractEntities(ctx context.Context, documentID, projectID, text string) error {
	_, err := c.extractor.ExtractAndStore(ctx, documentID, projectID, text)
	return err
}

// ForgetDocument 清除文档的向量和实体，用于文档在处理期间被删除的情况。
func (c *Core) ForgetDocument(ctx context.Context, documentID, projectID string) error {
	if err := c.indexer.Sync(ctx, documentID, projectID, ""); err != nil {
		return err
	}
	return c.extractor.Clear(ctx, documentID)
}

// Ask 在项目范围内回答问题。
func (c *Core) Ask(ctx context.Context, projectID, question string) (*model.QAResult, error) {
	return c.answerer.Answer(ctx, projectID, question)
}

// AskStream 与 Ask 相同，但把模型输出逐段写入 writer。
func (c *Core) AskStream(ctx context.Context, projectID, question string, writer llm.MessageWriter) (*model.QAResult, error) {
	return c.answerer.AnswerStream(ctx, projectID, question, writer)
}
