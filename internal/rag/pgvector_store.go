package rag

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PGVectorStore 基于PostgreSQL pgvector扩展的向量存储实现
type PGVectorStore struct {
	db        *gorm.DB
	dimension int
}

// NewPGVectorStore 创建新的pgvector存储实例
// dimension 必须与嵌入模型的输出维度一致
func NewPGVectorStore(db *gorm.DB, dimension int) *PGVectorStore {
	if dimension <= 0 {
		dimension = 1536
	}
	return &PGVectorStore{
		db:        db,
		dimension: dimension,
	}
}

// Dimension 返回存储期望的向量维度
func (s *PGVectorStore) Dimension() int {
	return s.dimension
}

// Insert 写入一个文本块及其向量
// 向量维度不符或所属文档不存在时返回StoreError，不做静默截断或补零
func (s *PGVectorStore) Insert(ctx context.Context, text string, embedding []float32, metadata map[string]any, documentID string) error {
	if len(embedding) != s.dimension {
		return &StoreError{
			Op:  "insert",
			Err: fmt.Errorf("向量维度不匹配: 期望%d, 实际%d", s.dimension, len(embedding)),
		}
	}
	if documentID == "" {
		return &StoreError{
			Op:  "insert",
			Err: fmt.Errorf("缺少所属文档ID"),
		}
	}

	// 确认所属文档存在，保证每个文本块都能追溯到来源
	var count int64
	if err := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", documentID).Count(&count).Error; err != nil {
		return &StoreError{Op: "insert", Err: fmt.Errorf("查询所属文档失败: %w", err)}
	}
	if count == 0 {
		return &StoreError{Op: "insert", Err: fmt.Errorf("所属文档不存在: %s", documentID)}
	}

	chunk := &Chunk{
		DocumentID: documentID,
		Text:       text,
		Embedding:  pgvector.NewVector(embedding),
		Metadata:   datatypes.JSONMap(metadata),
	}
	if err := s.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return &StoreError{Op: "insert", Err: fmt.Errorf("写入文本块失败: %w", err)}
	}
	return nil
}

// Query 按余弦相似度检索最接近的文本块
// 1 - (embedding <=> query_vector) 计算余弦相似度
// <=> 是pgvector的余弦距离操作符
// 结果按相似度降序排列，平分时按写入先后保持稳定；
// 只保留 similarity >= minSimilarity 的行，无命中时返回空切片而非错误
func (s *PGVectorStore) Query(ctx context.Context, embedding []float32, limit int, minSimilarity float64) ([]Match, error) {
	if len(embedding) != s.dimension {
		return nil, &StoreError{
			Op:  "query",
			Err: fmt.Errorf("向量维度不匹配: 期望%d, 实际%d", s.dimension, len(embedding)),
		}
	}
	if limit <= 0 {
		limit = 5
	}

	// 构建向量字符串 '[0.1, 0.2, ...]'
	vectorStr := vectorToString(embedding)

	query := `
		SELECT
			c.text,
			c.metadata,
			c.document_id,
			d.url AS document_url,
			1 - (c.embedding <=> $1::vector) AS similarity
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		ORDER BY c.embedding <=> $1::vector, c.created_at, c.id
		LIMIT $2
	`

	var results []struct {
		Text        string            `gorm:"column:text"`
		Metadata    datatypes.JSONMap `gorm:"column:metadata"`
		DocumentID  string            `gorm:"column:document_id"`
		DocumentURL string            `gorm:"column:document_url"`
		Similarity  float64           `gorm:"column:similarity"`
	}
	if err := s.db.WithContext(ctx).Raw(query, vectorStr, limit).Scan(&results).Error; err != nil {
		return nil, &StoreError{Op: "query", Err: fmt.Errorf("向量搜索失败: %w", err)}
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if r.Similarity < minSimilarity {
			continue
		}
		matches = append(matches, Match{
			Text:        r.Text,
			Similarity:  r.Similarity,
			Metadata:    map[string]any(r.Metadata),
			DocumentID:  r.DocumentID,
			DocumentURL: r.DocumentURL,
		})
	}
	return matches, nil
}

// DeleteByText 删除与给定文本完全一致的文本块
// 存在多条时只删除最早写入的一条，不存在时为空操作
func (s *PGVectorStore) DeleteByText(ctx context.Context, text string) error {
	err := s.db.WithContext(ctx).Exec(
		`DELETE FROM chunks WHERE id IN (
			SELECT id FROM chunks WHERE text = ? ORDER BY created_at, id LIMIT 1
		)`, text).Error
	if err != nil {
		return &StoreError{Op: "delete", Err: fmt.Errorf("删除文本块失败: %w", err)}
	}
	return nil
}

// vectorToString 将向量转换为PostgreSQL向量字符串格式
func vectorToString(vec []float32) string {
	if len(vec) == 0 {
		return "[]"
	}

	result := "["
	for i, v := range vec {
		if i > 0 {
			result += ","
		}
		result += fmt.Sprintf("%f", v)
	}
	result += "]"
	return result
}
