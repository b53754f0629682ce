// Package indexer 让向量索引与剧本的当前文本保持一致。
package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"scribe-eye-go/internal/chunker"
	"scribe-eye-go/internal/model"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
)

// Embedder 是 Indexer 需要的向量化能力，pkg/embedding.Client 满足该接口。
type Embedder interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex 由 pkg/es.VectorIndex 和 pkg/memindex.Index 实现。
type VectorIndex interface {
	Upsert(ctx context.Context, records []model.VectorRecord) error
	Search(ctx context.Context, vector []float32, k int, filter model.VectorFilter) ([]model.VectorHit, error)
	Delete(ctx context.Context, filter model.VectorFilter) error
}

// Indexer 负责单个剧本的切块、向量化和替换写入。
type Indexer struct {
	splitter     *chunker.Splitter
	embedder     Embedder
	index        VectorIndex
	modelVersion string
}

func New(splitter *chunker.Splitter, embedder Embedder, index VectorIndex, modelVersion string) *Indexer {
	return &Indexer{
		splitter:     splitter,
		embedder:     embedder,
		index:        index,
		modelVersion: modelVersion,
	}
}

// Sync 用 text 的切块替换索引中 documentID 的全部记录。
//
// 所有切块向量化成功之后才删除旧记录，向量化失败时旧的记录保持不变。
// 文本为空（或只有空白）时只删除旧记录。
func (ix *Indexer) Sync(ctx context.Context, documentID, projectID, text string) error {
	logger := log.With("script_id", documentID, "project_id", projectID)

	if strings.TrimSpace(text) == "" {
		logger.Infof("[Indexer] 文本为空, 清除剧本的全部向量")
		return ix.clear(ctx, documentID)
	}

	chunks := ix.splitter.Split(text)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	logger.Infof("[Indexer] 文本切块完成, 共 %d 个切块", len(chunks))

	vectors, err := ix.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		logger.Errorf("[Indexer] 向量化失败, 保留旧向量: %v", err)
		return fmt.Errorf("embed chunks of script %s: %w", documentID, err)
	}
	if len(vectors) != len(chunks) {
		return apperrors.Newf(apperrors.ErrProviderUnavailable,
			"embedding provider returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]model.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = model.VectorRecord{
			VectorID:     uuid.NewString(),
			ProjectID:    projectID,
			ScriptID:     documentID,
			ChunkID:      c.Ordinal,
			TextContent:  c.Text,
			Vector:       vectors[i],
			ModelVersion: ix.modelVersion,
		}
	}

	if err := ix.clear(ctx, documentID); err != nil {
		return err
	}
	if err := ix.index.Upsert(ctx, records); err != nil {
		logger.Errorf("[Indexer] 写入向量失败: %v", err)
		return fmt.Errorf("upsert vectors of script %s: %w", documentID, err)
	}
	logger.Infof("[Indexer] 同步完成, 写入 %d 条向量", len(records))
	return nil
}

// DeleteProject 删除项目下的全部向量，用于项目级联删除。
func (ix *Indexer) DeleteProject(ctx context.Context, projectID string) error {
	err := ix.index.Delete(ctx, model.VectorFilter{ProjectID: projectID})
	if err != nil && !apperrors.Is(err, apperrors.ErrIndexNotFound) {
		return fmt.Errorf("delete vectors of project %s: %w", projectID, err)
	}
	return nil
}

// DeleteScript 删除剧本的全部向量。
func (ix *Indexer) DeleteScript(ctx context.Context, documentID string) error {
	return ix.clear(ctx, documentID)
}

func (ix *Indexer) clear(ctx context.Context, documentID string) error {
	err := ix.index.Delete(ctx, model.VectorFilter{ScriptID: documentID})
	if err == nil {
		return nil
	}
	if apperrors.Is(err, apperrors.ErrIndexNotFound) {
		log.Debugf("[Indexer] 索引尚不存在, 跳过删除 script_id=%s", documentID)
		return nil
	}
	return fmt.Errorf("delete vectors of script %s: %w", documentID, err)
}
