package memindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe-eye-go/internal/model"
	apperrors "scribe-eye-go/pkg/errors"
)

func rec(id, project, script string, chunk int, vec ...float32) model.VectorRecord {
	return model.VectorRecord{VectorID: id, ProjectID: project, ScriptID: script, ChunkID: chunk, TextContent: id, Vector: vec}
}

func TestDelete_BeforeAnyUpsert(t *testing.T) {
	idx := New()
	err := idx.Delete(context.Background(), model.VectorFilter{ScriptID: "s1"})
	assert.True(t, apperrors.Is(err, apperrors.ErrIndexNotFound))
}

func TestDelete_EmptyFilter(t *testing.T) {
	idx := New()
	err := idx.Delete(context.Background(), model.VectorFilter{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParameter))
}

func TestSearch_RanksAndFilters(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Upsert(ctx, []model.VectorRecord{
		rec("a", "p1", "s1", 0, 1, 0),
		rec("b", "p1", "s1", 1, 0.7, 0.7),
		rec("c", "p1", "s2", 0, 0, 1),
		rec("d", "p2", "s3", 0, 1, 0),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2, model.VectorFilter{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Record.VectorID)
	assert.Equal(t, "b", hits[1].Record.VectorID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	hits, err = idx.Search(ctx, []float32{1, 0}, 10, model.VectorFilter{ProjectID: "p2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d", hits[0].Record.VectorID)

	hits, err = idx.Search(ctx, []float32{1, 0}, 4, model.VectorFilter{ProjectID: "p1", ScriptID: "s2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c", hits[0].Record.VectorID)
}

func TestSearch_TiesOrderedByID(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Upsert(ctx, []model.VectorRecord{
		rec("z", "p", "s", 0, 1, 0),
		rec("m", "p", "s", 1, 2, 0),
		rec("a", "p", "s", 2, 3, 0),
	}))
	hits, err := idx.Search(ctx, []float32{1, 0}, 3, model.VectorFilter{ProjectID: "p"})
	require.NoError(t, err)
	ids := []string{hits[0].Record.VectorID, hits[1].Record.VectorID, hits[2].Record.VectorID}
	assert.Equal(t, []string{"a", "m", "z"}, ids)
}

func TestSearch_RejectsEmptyFilter(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Upsert(ctx, []model.VectorRecord{rec("a", "p1", "s1", 0, 1)}))

	_, err := idx.Search(ctx, []float32{1}, 4, model.VectorFilter{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParameter))
}

func TestDelete_ByScript(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Upsert(ctx, []model.VectorRecord{
		rec("a", "p1", "s1", 0, 1),
		rec("b", "p1", "s2", 0, 1),
	}))
	require.NoError(t, idx.Delete(ctx, model.VectorFilter{ScriptID: "s1"}))
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, "b", idx.Records(model.VectorFilter{})[0].VectorID)

	// 删除后索引仍然存在，再次删除不报错
	require.NoError(t, idx.Delete(ctx, model.VectorFilter{ScriptID: "s1"}))
}

func TestUpsert_CopiesVector(t *testing.T) {
	ctx := context.Background()
	idx := New()
	v := []float32{1, 2}
	require.NoError(t, idx.Upsert(ctx, []model.VectorRecord{rec("a", "p", "s", 0, v...)}))
	v[0] = 9
	assert.Equal(t, float32(1), idx.Records(model.VectorFilter{})[0].Vector[0])
}
