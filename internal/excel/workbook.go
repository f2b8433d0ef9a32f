package excel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"mailrag/internal/logger"
	"mailrag/internal/metrics"
	"mailrag/internal/rag"
)

// insufficientAnswer 展示门槛未过或无法作答时填入Answers列的固定文案
const insufficientAnswer = "Not enough information to answer this question."

// Answerer 问答引擎接口, 由RAG服务实现
type Answerer interface {
	Answer(ctx context.Context, question string) (*rag.Response, error)
}

// Processor Excel批量问答处理器
// 把表格每一行拼成一个问题, 逐行问答后附加Answers和Similarity Score两列
type Processor struct {
	svc Answerer

	// displayMinSimilarity 展示门槛, 与引擎内部阈值相互独立;
	// 相似度低于该值时即使引擎已生成回答也只展示固定文案
	displayMinSimilarity float64
}

// NewProcessor 创建Excel处理器
func NewProcessor(svc Answerer, displayMinSimilarity float64) *Processor {
	return &Processor{
		svc:                  svc,
		displayMinSimilarity: displayMinSimilarity,
	}
}

// ProcessWorkbook 处理单个工作簿
// 读取第一个工作表, 首行视为表头, 逐数据行问答,
// 在原表右侧追加两列后另存为 <原名>_answered.xlsx, 返回输出路径和结果描述
func (p *Processor) ProcessWorkbook(ctx context.Context, path string) (string, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return "", "", fmt.Errorf("failed to read sheet: %w", err)
	}

	// 首行是表头, 数据行为空时视为空表
	if len(rows) <= 1 {
		return "", "", fmt.Errorf("Excel file is empty")
	}
	dataRows := rows[1:]

	// 新列加在最宽一行的右侧, 参差行不会被覆盖
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	answersCol := width + 1
	scoreCol := width + 2

	if err := p.setCell(f, sheet, answersCol, 1, "Answers"); err != nil {
		return "", "", err
	}
	if err := p.setCell(f, sheet, scoreCol, 1, "Similarity Score"); err != nil {
		return "", "", err
	}

	for i, row := range dataRows {
		question := concatQuestion(row)
		answer, score := p.answerRow(ctx, question)

		rowNum := i + 2 // 数据行从第2行开始
		if err := p.setCell(f, sheet, answersCol, rowNum, answer); err != nil {
			return "", "", err
		}
		if err := p.setCell(f, sheet, scoreCol, rowNum, score); err != nil {
			return "", "", err
		}
		metrics.BatchRowsTotal.Inc()
	}

	outPath := answeredPath(path)
	if err := f.SaveAs(outPath); err != nil {
		return "", "", fmt.Errorf("failed to save workbook: %w", err)
	}

	return outPath, fmt.Sprintf("Processed %d questions successfully", len(dataRows)), nil
}

// answerRow 回答单行问题并套用展示门槛
// 空问题不调用引擎; 单行引擎故障只记录日志, 不中断整个工作簿
func (p *Processor) answerRow(ctx context.Context, question string) (answer, score string) {
	if question == "" {
		return insufficientAnswer, "N/A"
	}

	resp, err := p.svc.Answer(ctx, question)
	if err != nil {
		logger.Error("批量问答单行失败", zap.Error(err))
		return insufficientAnswer, "N/A"
	}

	if resp.MaxSimilarity == nil {
		return insufficientAnswer, "N/A"
	}

	sim := *resp.MaxSimilarity
	score = fmt.Sprintf("%.1f%%", sim*100)
	if sim >= p.displayMinSimilarity {
		return resp.Text, score
	}
	return insufficientAnswer, score
}

// concatQuestion 把一行中所有非空单元格按列序拼接成问题
func concatQuestion(row []string) string {
	parts := make([]string, 0, len(row))
	for _, cell := range row {
		if cell == "" {
			continue
		}
		parts = append(parts, cell)
	}
	return strings.Join(parts, "\n")
}

// setCell 按列行坐标写入单元格
func (p *Processor) setCell(f *excelize.File, sheet string, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to locate cell: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to write cell: %w", err)
	}
	return nil
}

// answeredPath 输出文件与输入同目录, 文件名追加 _answered 后缀
func answeredPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, name+"_answered.xlsx")
}
