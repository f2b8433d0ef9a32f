package excel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"mailrag/internal/logger"
)

// skipReason 非Excel附件的跳过原因, 会原样出现在回信摘要里
const skipReason = "Unsupported file format. Only .xlsx and .xls files are supported"

// BatchReport 一批附件的处理结果
type BatchReport struct {
	Outcomes  []string // 每个文件一行结果描述, 保持输入顺序
	Outputs   []string // 生成的结果文件路径
	Processed int      // 成功处理的文件数
	Failed    int      // 处理失败的文件数
	Skipped   int      // 格式不支持被跳过的文件数
}

// Summary 把逐文件结果拼成带连字符的摘要文本
func (r *BatchReport) Summary() string {
	if len(r.Outcomes) == 0 {
		return ""
	}
	lines := make([]string, len(r.Outcomes))
	for i, outcome := range r.Outcomes {
		lines[i] = "- " + outcome
	}
	return strings.Join(lines, "\n")
}

// Attachments 本批附件总数
func (r *BatchReport) Attachments() int {
	return r.Processed + r.Failed + r.Skipped
}

// ProcessAttachments 逐个处理附件文件
// 只接受 .xlsx/.xls, 其余记为跳过; 单个文件失败不影响其余文件
func (p *Processor) ProcessAttachments(ctx context.Context, paths []string) *BatchReport {
	report := &BatchReport{
		Outcomes: make([]string, 0, len(paths)),
		Outputs:  make([]string, 0, len(paths)),
	}

	for _, path := range paths {
		name := filepath.Base(path)

		if !isExcelFile(name) {
			report.Skipped++
			report.Outcomes = append(report.Outcomes,
				fmt.Sprintf("File '%s' was skipped: %s", name, skipReason))
			continue
		}

		outPath, message, err := p.ProcessWorkbook(ctx, path)
		if err != nil {
			logger.Error("处理Excel附件失败",
				zap.String("file", name),
				zap.Error(err))
			report.Failed++
			report.Outcomes = append(report.Outcomes,
				fmt.Sprintf("File '%s' could not be processed: %s", name, err.Error()))
			continue
		}

		report.Processed++
		report.Outputs = append(report.Outputs, outPath)
		report.Outcomes = append(report.Outcomes,
			fmt.Sprintf("File '%s' processed successfully: %s", name, message))
	}

	return report
}

// isExcelFile 按扩展名判断是否为Excel文件
func isExcelFile(name string) bool {
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xls")
}
