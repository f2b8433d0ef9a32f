package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"mailrag/internal/logger"
	"mailrag/internal/metrics"
	"mailrag/internal/rag/parsers"
)

// DocumentProcessor 文档入库处理器
// 负责 解析 -> 分块 -> 向量化 -> 写入 的完整链路
type DocumentProcessor struct {
	db       *gorm.DB
	store    VectorStore
	embedder EmbeddingProvider
	chunker  *Chunker
	registry *parsers.Registry
}

// NewDocumentProcessor 创建文档处理器
func NewDocumentProcessor(db *gorm.DB, store VectorStore, embedder EmbeddingProvider, chunker *Chunker, registry *parsers.Registry) *DocumentProcessor {
	return &DocumentProcessor{
		db:       db,
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		registry: registry,
	}
}

// ProcessReport 目录入库统计
type ProcessReport struct {
	Processed int // 本次完成入库的文件数
	Skipped   int // 已处理直接跳过的文件数
	Failed    int // 入库失败的文件数
}

// ProcessFile 将单个文件入库
// 以文件路径为身份做幂等: 已处理的文件直接跳过, 不重新读取也不重新向量化
func (p *DocumentProcessor) ProcessFile(ctx context.Context, path string) error {
	_, err := p.process(ctx, path, "")
	return err
}

// ProcessFileWithURL 将单个文件入库, 以URL为身份键并记录来源
// HTTP入库场景使用, URL会随命中结果返回给提问者
func (p *DocumentProcessor) ProcessFileWithURL(ctx context.Context, path, url string) error {
	_, err := p.process(ctx, path, url)
	return err
}

// process 入库主流程
// 每个分块逐个向量化并单独落库, processed标记最后写入;
// 中途失败时文档保持未处理状态, 重跑会重新抽取并补插(至少一次语义)
func (p *DocumentProcessor) process(ctx context.Context, path, url string) (skipped bool, err error) {
	// URL入库以URL为身份键(临时文件路径每次都不同), 本地文件以路径为身份键
	identity := path
	if url != "" {
		identity = url
	}

	doc, err := p.findOrCreateDocument(ctx, identity, url)
	if err != nil {
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return false, err
	}
	if doc.Processed {
		logger.Debug("文档已处理, 跳过", zap.String("path", path))
		metrics.IngestFilesTotal.WithLabelValues("skipped").Inc()
		return true, nil
	}

	text, err := p.registry.ParseFile(path)
	if err != nil {
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return false, fmt.Errorf("解析文档失败: %w", err)
	}

	chunks, err := p.chunker.ChunkDocument(text)
	if err != nil {
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return false, fmt.Errorf("文档分块失败: %w", err)
	}

	source := filepath.Base(path)
	logger.Info("开始入库文档",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)))

	// 逐块向量化并写入, 保持顺序以便chunk_index连续递增
	for i, chunk := range chunks {
		embedding, err := p.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
			return false, fmt.Errorf("向量化第%d块失败: %w", i, err)
		}

		metadata := map[string]any{
			"source":       source,
			"chunk_index":  i,
			"total_chunks": len(chunks),
		}
		if err := p.store.Insert(ctx, chunk.Content, embedding, metadata, doc.ID); err != nil {
			metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
			return false, fmt.Errorf("写入第%d块失败: %w", i, err)
		}
		metrics.IngestChunksTotal.Inc()
	}

	// 所有分块落库后才标记已处理
	if err := p.db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", doc.ID).
		Update("processed", true).Error; err != nil {
		metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
		return false, fmt.Errorf("标记文档已处理失败: %w", err)
	}

	logger.Info("文档入库完成",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)))
	metrics.IngestFilesTotal.WithLabelValues("processed").Inc()
	return false, nil
}

// findOrCreateDocument 按身份键查找或创建文档记录
// filepath列存身份键且有唯一索引, 并发创建冲突时回退为再次查找
func (p *DocumentProcessor) findOrCreateDocument(ctx context.Context, identity, url string) (*Document, error) {
	var doc Document
	err := p.db.WithContext(ctx).Where("filepath = ?", identity).First(&doc).Error
	if err == nil {
		if url != "" && doc.URL != url {
			if err := p.db.WithContext(ctx).Model(&doc).Update("url", url).Error; err != nil {
				return nil, fmt.Errorf("更新文档URL失败: %w", err)
			}
			doc.URL = url
		}
		return &doc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询文档记录失败: %w", err)
	}

	doc = Document{Filepath: identity, URL: url}
	if err := p.db.WithContext(ctx).Create(&doc).Error; err != nil {
		// 唯一索引冲突说明另一路已经创建, 改为读取现有记录
		var existing Document
		if ferr := p.db.WithContext(ctx).Where("filepath = ?", identity).First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}
	return &doc, nil
}

// ProcessDirectory 批量入库目录下所有支持的文档
// 先处理 *.pdf 再处理 *.md; 单个文件失败只记录日志, 不中断整批
func (p *DocumentProcessor) ProcessDirectory(ctx context.Context, dir string) (ProcessReport, error) {
	var report ProcessReport

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Warn("文档目录不存在", zap.String("dir", dir))
		return report, nil
	}

	for _, pattern := range []string{"*.pdf", "*.md"} {
		paths, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return report, fmt.Errorf("枚举文档失败: %w", err)
		}

		for _, path := range paths {
			skipped, err := p.process(ctx, path, "")
			switch {
			case err != nil:
				logger.Error("文档入库失败",
					zap.String("path", path),
					zap.Error(err))
				report.Failed++
			case skipped:
				report.Skipped++
			default:
				report.Processed++
			}
		}
	}

	return report, nil
}
