package model

// QAResult 是一次问答的结果，SourceChunks 按相似度排序。
type QAResult struct {
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	SourceChunks []string `json:"source_chunks"`
}
