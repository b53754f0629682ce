package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"scribe-eye-go/internal/model"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
)

// VectorIndex 在单个 Elasticsearch 索引上实现 upsert/search/delete。
// 所有写操作都带 refresh，写入成功后立即可被搜索到。
type VectorIndex struct {
	client    *elasticsearch.Client
	indexName string
}

// NewVectorIndex 创建一个新的 VectorIndex 实例。
func NewVectorIndex(client *elasticsearch.Client, indexName string) *VectorIndex {
	return &VectorIndex{client: client, indexName: indexName}
}

type bulkAction struct {
	Index struct {
		Index string `json:"_index"`
		ID    string `json:"_id"`
	} `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Upsert 通过 _bulk 写入记录，以 VectorID 作为文档 ID。
func (v *VectorIndex) Upsert(ctx context.Context, records []model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		var action bulkAction
		action.Index.Index = v.indexName
		action.Index.ID = r.VectorID
		if err := enc.Encode(action); err != nil {
			return apperrors.Wrap(apperrors.ErrVectorUpsert, err, "encode bulk action")
		}
		if err := enc.Encode(r); err != nil {
			return apperrors.Wrap(apperrors.ErrVectorUpsert, err, "encode vector record")
		}
	}

	res, err := v.client.Bulk(
		&buf,
		v.client.Bulk.WithContext(ctx),
		v.client.Bulk.WithIndex(v.indexName),
		v.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrVectorUpsert, err, "bulk request failed")
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.Newf(apperrors.ErrVectorUpsert, "bulk request returned %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return apperrors.Wrap(apperrors.ErrVectorUpsert, err, "decode bulk response")
	}
	if br.Errors {
		for _, item := range br.Items {
			for _, result := range item {
				if result.Status >= 300 {
					return apperrors.Newf(apperrors.ErrVectorUpsert, "bulk item failed: %s: %s", result.Error.Type, result.Error.Reason)
				}
			}
		}
		return apperrors.New(apperrors.ErrVectorUpsert, "bulk request reported errors")
	}
	return nil
}

// Search 执行带元数据过滤的 kNN 搜索，按相似度降序返回最多 k 条。
func (v *VectorIndex) Search(ctx context.Context, vector []float32, k int, filter model.VectorFilter) ([]model.VectorHit, error) {
	if k <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidParameter, "k must be positive, got %d", k)
	}
	if filter.IsEmpty() {
		return nil, apperrors.New(apperrors.ErrInvalidParameter, "refusing to search with an empty filter")
	}
	numCandidates := k * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   vector,
		"k":              k,
		"num_candidates": numCandidates,
	}
	knn["filter"] = map[string]interface{}{
		"bool": map[string]interface{}{"filter": filterClauses(filter)},
	}
	query := map[string]interface{}{
		"knn":     knn,
		"size":    k,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrVectorSearch, err, "encode search query")
	}

	res, err := v.client.Search(
		v.client.Search.WithContext(ctx),
		v.client.Search.WithIndex(v.indexName),
		v.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrVectorSearch, err, "search request failed")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound && isIndexNotFound(res.Body) {
		// 索引尚未创建等价于没有任何匹配
		return nil, nil
	}
	if res.IsError() {
		return nil, apperrors.Newf(apperrors.ErrVectorSearch, "search returned %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.VectorRecord `json:"_source"`
				Score  float64            `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrVectorSearch, err, "decode search response")
	}

	hits := make([]model.VectorHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, model.VectorHit{Record: h.Source, Score: h.Score})
	}
	return hits, nil
}

// Delete 删除所有满足过滤条件的记录。索引不存在时返回 ErrIndexNotFound。
func (v *VectorIndex) Delete(ctx context.Context, filter model.VectorFilter) error {
	clauses := filterClauses(filter)
	if len(clauses) == 0 {
		return apperrors.New(apperrors.ErrInvalidParameter, "refusing to delete with an empty filter")
	}
	body, err := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": clauses},
		},
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrVectorDelete, err, "encode delete query")
	}

	res, err := v.client.DeleteByQuery(
		[]string{v.indexName},
		bytes.NewReader(body),
		v.client.DeleteByQuery.WithContext(ctx),
		v.client.DeleteByQuery.WithRefresh(true),
		v.client.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrVectorDelete, err, "delete_by_query request failed")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound && isIndexNotFound(res.Body) {
		return apperrors.Newf(apperrors.ErrIndexNotFound, "index '%s' does not exist", v.indexName)
	}
	if res.IsError() {
		return apperrors.Newf(apperrors.ErrVectorDelete, "delete_by_query returned %s", res.String())
	}

	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err == nil {
		log.Debugf("[VectorIndex] delete_by_query 删除 %d 条记录, filter=%+v", out.Deleted, filter)
	}
	return nil
}

func filterClauses(filter model.VectorFilter) []map[string]interface{} {
	var clauses []map[string]interface{}
	if filter.ProjectID != "" {
		clauses = append(clauses, map[string]interface{}{"term": map[string]interface{}{"project_id": filter.ProjectID}})
	}
	if filter.ScriptID != "" {
		clauses = append(clauses, map[string]interface{}{"term": map[string]interface{}{"script_id": filter.ScriptID}})
	}
	return clauses
}

func isIndexNotFound(body io.Reader) bool {
	var out struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return false
	}
	return out.Error.Type == "index_not_found_exception"
}

// String 便于日志输出。
func (v *VectorIndex) String() string {
	return fmt.Sprintf("es(%s)", v.indexName)
}
