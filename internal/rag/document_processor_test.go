package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mailrag/internal/logger"
	"mailrag/internal/rag/parsers"
)

type insertRecord struct {
	text       string
	metadata   map[string]any
	documentID string
}

// recordingStore 记录所有写入的存储桩, failAt 指定第几次写入返回错误(0 表示不失败)
type recordingStore struct {
	inserts []insertRecord
	failAt  int
	calls   int
}

func (s *recordingStore) Insert(ctx context.Context, text string, embedding []float32, metadata map[string]any, documentID string) error {
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return errors.New("storage unavailable")
	}
	s.inserts = append(s.inserts, insertRecord{text: text, metadata: metadata, documentID: documentID})
	return nil
}

func (s *recordingStore) Query(ctx context.Context, embedding []float32, limit int, minSimilarity float64) ([]Match, error) {
	return nil, nil
}

func (s *recordingStore) DeleteByText(ctx context.Context, text string) error { return nil }
func (s *recordingStore) Dimension() int                                      { return 3 }

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (fixedEmbedder) Dimension() int { return 3 }
func (fixedEmbedder) Model() string  { return "fixed-embedding" }

func newTestProcessor(db *gorm.DB, store VectorStore) *DocumentProcessor {
	chunker := &Chunker{ChunkSize: 4}
	return NewDocumentProcessor(db, store, fixedEmbedder{}, chunker, parsers.NewRegistry())
}

func writeDocFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "写入测试文件失败")
	return path
}

func TestDocumentProcessor_ProcessFile(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()
	db := openTestDB(t, "doc_processor")
	store := &recordingStore{}
	proc := newTestProcessor(db, store)

	// 两个段落各 2 Token, 分块目标 4, 应得两块
	path := writeDocFile(t, t.TempDir(), "guide.md", "alpha one\n\nbeta two\n\ngamma three\n\ndelta four")

	require.NoError(t, proc.ProcessFile(ctx, path))

	var doc Document
	require.NoError(t, db.Where("filepath = ?", path).First(&doc).Error, "应以文件路径为身份键建档")
	if !doc.Processed {
		t.Fatalf("入库完成后应标记已处理")
	}
	if doc.URL != "" {
		t.Fatalf("本地文件不应记录来源URL, 实际 %q", doc.URL)
	}

	require.Len(t, store.inserts, 2, "两个分块都应落库")
	first := store.inserts[0]
	if first.text != "alpha one beta two" {
		t.Fatalf("首块内容不符: %q", first.text)
	}
	if first.metadata["source"] != "guide.md" {
		t.Fatalf("元数据 source 应为文件名, 实际 %v", first.metadata["source"])
	}
	if first.metadata["chunk_index"] != 0 || first.metadata["total_chunks"] != 2 {
		t.Fatalf("分块元数据不符: %v", first.metadata)
	}
	if store.inserts[1].metadata["chunk_index"] != 1 {
		t.Fatalf("分块索引应递增: %v", store.inserts[1].metadata)
	}
	for _, rec := range store.inserts {
		if rec.documentID != doc.ID {
			t.Fatalf("文本块应归属文档 %s, 实际 %s", doc.ID, rec.documentID)
		}
	}

	// 再次入库同一路径应跳过, 不产生新的写入
	require.NoError(t, proc.ProcessFile(ctx, path))
	require.Len(t, store.inserts, 2, "已处理文件不应重复落库")
}

func TestDocumentProcessor_ProcessFile_UnsupportedExtension(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()
	db := openTestDB(t, "doc_processor_ext")
	proc := newTestProcessor(db, &recordingStore{})

	path := writeDocFile(t, t.TempDir(), "data.csv", "a,b,c")

	err := proc.ProcessFile(ctx, path)
	require.Error(t, err)
	if !strings.Contains(err.Error(), "解析文档失败") {
		t.Fatalf("错误应说明解析失败, 实际 %v", err)
	}
}

func TestDocumentProcessor_ProcessFile_RetryAfterFailure(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()
	db := openTestDB(t, "doc_processor_retry")
	store := &recordingStore{failAt: 2}
	proc := newTestProcessor(db, store)

	path := writeDocFile(t, t.TempDir(), "guide.md", "alpha one\n\nbeta two\n\ngamma three\n\ndelta four")

	// 第二块写入失败, 文档保持未处理
	err := proc.ProcessFile(ctx, path)
	require.Error(t, err)

	var doc Document
	require.NoError(t, db.Where("filepath = ?", path).First(&doc).Error)
	if doc.Processed {
		t.Fatalf("中途失败的文档不应标记已处理")
	}
	require.Len(t, store.inserts, 1, "失败前的分块已经落库")

	// 重跑会重新抽取并补插, 至少一次语义允许重复
	store.failAt = 0
	require.NoError(t, proc.ProcessFile(ctx, path))

	require.NoError(t, db.Where("filepath = ?", path).First(&doc).Error)
	if !doc.Processed {
		t.Fatalf("重跑成功后应标记已处理")
	}
	require.Len(t, store.inserts, 3, "重跑应重新写入全部分块")
}

func TestDocumentProcessor_ProcessFileWithURL(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()
	db := openTestDB(t, "doc_processor_url")
	store := &recordingStore{}
	proc := newTestProcessor(db, store)

	url := "https://docs.example.com/guide.pdf"
	dir := t.TempDir()
	first := writeDocFile(t, dir, "ingest-1.md", "alpha one\n\nbeta two")

	require.NoError(t, proc.ProcessFileWithURL(ctx, first, url))

	// 身份键是URL而非临时路径
	var doc Document
	require.NoError(t, db.Where("filepath = ?", url).First(&doc).Error, "URL入库应以URL为身份键")
	if doc.URL != url {
		t.Fatalf("来源URL应被记录, 实际 %q", doc.URL)
	}
	if !doc.Processed {
		t.Fatalf("入库完成后应标记已处理")
	}
	inserted := len(store.inserts)
	require.Greater(t, inserted, 0)

	// 同一URL换一个临时路径重新提交, 应视为同一文档直接跳过
	second := writeDocFile(t, dir, "ingest-2.md", "alpha one\n\nbeta two")
	require.NoError(t, proc.ProcessFileWithURL(ctx, second, url))
	require.Len(t, store.inserts, inserted, "重复URL不应重新落库")

	var count int64
	require.NoError(t, db.Model(&Document{}).Count(&count).Error)
	if count != 1 {
		t.Fatalf("同一URL只应有一条文档记录, 实际 %d", count)
	}
}

func TestDocumentProcessor_ProcessDirectory(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()
	db := openTestDB(t, "doc_processor_dir")
	store := &recordingStore{}
	proc := newTestProcessor(db, store)

	dir := t.TempDir()
	writeDocFile(t, dir, "one.md", "alpha one")
	writeDocFile(t, dir, "two.md", "beta two")
	writeDocFile(t, dir, "broken.pdf", "这不是PDF内容")
	writeDocFile(t, dir, "notes.txt", "目录入库只认 pdf 和 md") // 不在枚举范围内

	report, err := proc.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	if report.Processed != 2 || report.Failed != 1 || report.Skipped != 0 {
		t.Fatalf("首轮统计不符: %+v", report)
	}

	// 第二轮: 已处理的跳过, 坏文件继续失败
	report, err = proc.ProcessDirectory(ctx, dir)
	require.NoError(t, err)
	if report.Processed != 0 || report.Failed != 1 || report.Skipped != 2 {
		t.Fatalf("次轮统计不符: %+v", report)
	}
}

func TestDocumentProcessor_ProcessDirectory_Missing(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()
	db := openTestDB(t, "doc_processor_nodir")
	proc := newTestProcessor(db, &recordingStore{})

	report, err := proc.ProcessDirectory(ctx, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err, "目录不存在不是错误")
	if report.Processed != 0 || report.Failed != 0 || report.Skipped != 0 {
		t.Fatalf("目录不存在应返回零统计: %+v", report)
	}
}
