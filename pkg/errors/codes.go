package errors

import "net/http"

// ErrCode 业务错误码类型
type ErrCode int

const (
	// 通用错误 1000-1999
	ErrInvalidParameter ErrCode = 1001 // 参数错误，对应 InputError
	ErrInternalError    ErrCode = 1003 // 内部错误
	ErrNotFound         ErrCode = 1004 // 资源未找到

	// 模型相关 2000-2999
	ErrProviderUnavailable ErrCode = 2001 // Embedding/LLM 暂时不可用，可重试
	ErrInvalidInput        ErrCode = 2002 // Provider 拒绝输入（如超过 token 限制），不可重试
	ErrMalformedExtraction ErrCode = 2003 // 结构化抽取结果不符合 schema，不可重试

	// 向量库 5000-5999
	ErrIndexNotFound ErrCode = 5001 // 向量索引/命名空间不存在
	ErrVectorSearch  ErrCode = 5002 // 向量搜索失败
	ErrVectorUpsert  ErrCode = 5003 // 向量写入失败
	ErrVectorDelete  ErrCode = 5004 // 向量删除失败

	// 存储相关 6000-6999
	ErrDatabase ErrCode = 6001 // 数据库操作失败
	ErrSnapshot ErrCode = 6002 // 内容快照读写失败
	ErrQueue    ErrCode = 6003 // 后台任务投递失败
)

// HTTPStatusCode 返回错误码对应的HTTP状态码
func (e ErrCode) HTTPStatusCode() int {
	switch e {
	case ErrInvalidParameter:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrProviderUnavailable, ErrQueue:
		return http.StatusServiceUnavailable
	case ErrInvalidInput, ErrMalformedExtraction:
		return http.StatusUnprocessableEntity
	case ErrVectorSearch, ErrVectorUpsert, ErrVectorDelete, ErrIndexNotFound:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable 报告该错误码是否值得调用方重试。
func (e ErrCode) Retryable() bool {
	switch e {
	case ErrProviderUnavailable, ErrVectorSearch, ErrVectorUpsert, ErrVectorDelete, ErrDatabase, ErrSnapshot, ErrQueue:
		return true
	default:
		return false
	}
}
