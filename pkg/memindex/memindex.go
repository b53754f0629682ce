// Package memindex 提供进程内的暴力余弦相似度向量索引，用于 queue.driver=memory 的单机部署和测试。
package memindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"scribe-eye-go/internal/model"
	apperrors "scribe-eye-go/pkg/errors"
)

// Index 以 VectorID 为键保存记录。
type Index struct {
	mu      sync.RWMutex
	records map[string]model.VectorRecord
	created bool
}

func New() *Index {
	return &Index{records: make(map[string]model.VectorRecord)}
}

// Upsert 写入或覆盖记录。第一次写入时索引被视为已创建。
func (x *Index) Upsert(_ context.Context, records []model.VectorRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, r := range records {
		if r.VectorID == "" {
			return apperrors.New(apperrors.ErrVectorUpsert, "vector record without id")
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		r.Vector = vec
		x.records[r.VectorID] = r
	}
	x.created = true
	return nil
}

// Search 返回与 vector 最相似且满足 filter 的至多 k 条记录，分数相同时按 VectorID 排序。
// 与 Delete 一样，filter 不能为空。
func (x *Index) Search(_ context.Context, vector []float32, k int, filter model.VectorFilter) ([]model.VectorHit, error) {
	if k <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParameter, "k must be positive, got %d", k)
	}
	if filter.IsEmpty() {
		return nil, apperrors.New(apperrors.ErrInvalidParameter, "refusing to search with an empty filter")
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]model.VectorHit, 0, len(x.records))
	for _, r := range x.records {
		if !filter.Matches(r) {
			continue
		}
		hits = append(hits, model.VectorHit{Record: r, Score: cosine(vector, r.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.VectorID < hits[j].Record.VectorID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete 删除满足 filter 的记录。从未写入过的索引返回 ErrIndexNotFound。
func (x *Index) Delete(_ context.Context, filter model.VectorFilter) error {
	if filter.IsEmpty() {
		return apperrors.New(apperrors.ErrInvalidParameter, "refusing to delete with an empty filter")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.created {
		return apperrors.New(apperrors.ErrIndexNotFound, "in-memory index has not been created")
	}
	for id, r := range x.records {
		if filter.Matches(r) {
			delete(x.records, id)
		}
	}
	return nil
}

// Len 返回当前记录数。
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// Records 返回满足 filter 的记录快照，按 ScriptID、ChunkID 排序。
func (x *Index) Records(filter model.VectorFilter) []model.VectorRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]model.VectorRecord, 0)
	for _, r := range x.records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScriptID != out[j].ScriptID {
			return out[i].ScriptID < out[j].ScriptID
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

func (x *Index) String() string { return "memory" }

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
