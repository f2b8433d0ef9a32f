package rag

import "context"

// Match 描述一次相似度检索命中的分块。
type Match struct {
	Text        string         `json:"text"`
	Similarity  float64        `json:"similarity"`
	Metadata    map[string]any `json:"metadata"`
	DocumentID  string         `json:"document_id"`
	DocumentURL string         `json:"document_url"`
}

// VectorStore 抽象分块的写入、相似度检索与删除，可由不同后端实现。
// Query 返回结果按相似度降序，相同相似度按写入顺序稳定排序；
// 没有命中时返回空切片而不是错误。
type VectorStore interface {
	Insert(ctx context.Context, text string, embedding []float32, metadata map[string]any, documentID string) error
	Query(ctx context.Context, embedding []float32, limit int, minSimilarity float64) ([]Match, error)
	DeleteByText(ctx context.Context, text string) error
	Dimension() int
}
