package rag

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document 已摄取的源文档（文件或 URL），身份键唯一
type Document struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Filepath  string    `gorm:"type:varchar(1024);not null;uniqueIndex:idx_documents_filepath" json:"filepath"` // 文件路径或 URL，作为身份键
	URL       string    `gorm:"type:varchar(1024)" json:"url"`                                                  // 来源 URL，回答时随答案返回
	Processed bool      `gorm:"not null;default:false" json:"processed"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	return nil
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}

// Chunk 文档分块，文本与向量一一对应
type Chunk struct {
	ID         string            `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID string            `gorm:"type:uuid;not null;index:idx_chunks_document" json:"document_id"`
	Text       string            `gorm:"type:text;not null" json:"text"`
	Embedding  pgvector.Vector   `gorm:"type:vector(1536)" json:"-"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"` // source、chunk_index、total_chunks
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null" json:"updated_at"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (c *Chunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	return nil
}

// TableName 指定表名
func (Chunk) TableName() string {
	return "chunks"
}
