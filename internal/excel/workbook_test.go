package excel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"mailrag/internal/logger"
	"mailrag/internal/rag"
)

type fakeAnswerer struct {
	responses map[string]*rag.Response
	err       error
	calls     []string
}

func (f *fakeAnswerer) Answer(ctx context.Context, question string) (*rag.Response, error) {
	f.calls = append(f.calls, question)
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[question]; ok {
		return resp, nil
	}
	return &rag.Response{Text: "default answer"}, nil
}

func simPtr(v float64) *float64 { return &v }

// writeWorkbook 在目录下生成一个真实的xlsx文件
func writeWorkbook(t *testing.T, dir, name string, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, val))
		}
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

// readSheet 读取结果工作簿的全部单元格
func readSheet(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err, "打开结果工作簿失败")
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	return rows
}

func TestProcessor_ProcessWorkbook_DisplayGate(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	svc := &fakeAnswerer{responses: map[string]*rag.Response{
		"什么是向量检索?": {Text: "向量检索按相似度找最近的内容。", MaxSimilarity: simPtr(0.85)},
		"低相关问题":     {Text: "引擎仍给了回答", MaxSimilarity: simPtr(0.25)},
		"无语料问题":     {Text: "没有可用内容", MaxSimilarity: nil},
	}}
	p := NewProcessor(svc, 0.5)

	path := writeWorkbook(t, t.TempDir(), "questions.xlsx", [][]string{
		{"Question"},
		{"什么是向量检索?"},
		{"低相关问题"},
		{"无语料问题"},
	})

	outPath, message, err := p.ProcessWorkbook(ctx, path)
	require.NoError(t, err)

	if message != "Processed 3 questions successfully" {
		t.Fatalf("结果描述不符: %q", message)
	}
	wantOut := filepath.Join(filepath.Dir(path), "questions_answered.xlsx")
	if outPath != wantOut {
		t.Fatalf("输出路径不符: %q", outPath)
	}

	rows := readSheet(t, outPath)
	require.Len(t, rows, 4)

	// 表头追加两列
	require.Equal(t, []string{"Question", "Answers", "Similarity Score"}, rows[0])

	// 高于展示门槛: 展示引擎回答和分数
	require.Equal(t, "向量检索按相似度找最近的内容。", rows[1][1])
	require.Equal(t, "85.0%", rows[1][2])

	// 低于展示门槛: 分数照报, 回答换成固定文案
	require.Equal(t, insufficientAnswer, rows[2][1])
	require.Equal(t, "25.0%", rows[2][2])

	// 引擎拒答: 无相似度可报
	require.Equal(t, insufficientAnswer, rows[3][1])
	require.Equal(t, "N/A", rows[3][2])
}

func TestProcessor_ProcessWorkbook_QuestionAssembly(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	svc := &fakeAnswerer{responses: map[string]*rag.Response{}}
	p := NewProcessor(svc, 0.5)

	// 多单元格按列序拼接, 空行不调用引擎
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "Q"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "What is"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "the retention policy?"))
	// 第3行整行留空
	require.NoError(t, f.SetCellValue(sheet, "A4", "第二个问题"))
	path := filepath.Join(t.TempDir(), "multi.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	outPath, _, err := p.ProcessWorkbook(ctx, path)
	require.NoError(t, err)

	require.Equal(t, []string{"What is\nthe retention policy?", "第二个问题"}, svc.calls,
		"空行不应调用引擎, 多单元格按换行拼接")

	// 最宽行有2列, 新列从第3列开始, 参差数据不被覆盖
	rows := readSheet(t, outPath)
	require.Len(t, rows, 4)
	require.Equal(t, "Answers", rows[0][2])
	require.Equal(t, "the retention policy?", rows[1][1], "原有数据不应被新列覆盖")
	require.Equal(t, insufficientAnswer, rows[2][2], "空行应填固定文案")
	require.Equal(t, "N/A", rows[2][3])
}

func TestProcessor_ProcessWorkbook_Empty(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()
	p := NewProcessor(&fakeAnswerer{}, 0.5)

	path := writeWorkbook(t, t.TempDir(), "header_only.xlsx", [][]string{{"Question"}})

	_, _, err := p.ProcessWorkbook(ctx, path)
	require.Error(t, err)
	if err.Error() != "Excel file is empty" {
		t.Fatalf("空表错误信息不符: %v", err)
	}
}

func TestProcessor_ProcessWorkbook_EngineFailure(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	// 单行引擎故障只影响该行, 工作簿整体仍然产出
	svc := &fakeAnswerer{err: errors.New("engine down")}
	p := NewProcessor(svc, 0.5)

	path := writeWorkbook(t, t.TempDir(), "questions.xlsx", [][]string{
		{"Question"},
		{"第一问"},
		{"第二问"},
	})

	outPath, message, err := p.ProcessWorkbook(ctx, path)
	require.NoError(t, err)
	if message != "Processed 2 questions successfully" {
		t.Fatalf("结果描述不符: %q", message)
	}

	rows := readSheet(t, outPath)
	for i := 1; i <= 2; i++ {
		require.Equal(t, insufficientAnswer, rows[i][1])
		require.Equal(t, "N/A", rows[i][2])
	}
}
