package model

// VectorRecord 代表存储在向量索引中的一个切块。
// JSON 字段名同时也是 Elasticsearch 中的字段名。
type VectorRecord struct {
	VectorID     string    `json:"vector_id"`
	ProjectID    string    `json:"project_id"`
	ScriptID     string    `json:"script_id"`
	ChunkID      int       `json:"chunk_id"`
	TextContent  string    `json:"text_content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// VectorFilter 是对元数据字段的精确匹配合取，空字段表示不限制。
type VectorFilter struct {
	ProjectID string
	ScriptID  string
}

// IsEmpty 报告过滤条件是否一个字段都没有设置。
func (f VectorFilter) IsEmpty() bool {
	return f.ProjectID == "" && f.ScriptID == ""
}

// Matches 判断记录是否满足过滤条件。
func (f VectorFilter) Matches(r VectorRecord) bool {
	if f.ProjectID != "" && r.ProjectID != f.ProjectID {
		return false
	}
	if f.ScriptID != "" && r.ScriptID != f.ScriptID {
		return false
	}
	return true
}

// VectorHit 是一次相似度搜索的命中结果。
type VectorHit struct {
	Record VectorRecord
	Score  float64
}
