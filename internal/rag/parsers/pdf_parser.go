package parsers

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dslipak/pdf"
)

// PDFParser PDF 文件解析器
type PDFParser struct{}

// NewPDFParser 创建 PDF 解析器
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse 解析 PDF 文件, 逐页抽取纯文本并以换行连接。
// 单页解析失败不会中断整个文件, 坏页直接跳过。
func (p *PDFParser) Parse(reader io.Reader) (string, error) {
	// pdf.NewReader 需要 ReaderAt, 先整体读入
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取 PDF 内容失败: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 PDF 失败: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		if text, ok := pageText(r.Page(i)); ok {
			pages = append(pages, text)
		}
	}

	content := strings.TrimSpace(strings.Join(pages, "\n"))
	if content == "" {
		return "", fmt.Errorf("PDF 内容为空或无法解析文本")
	}

	return content, nil
}

// pageText 抽取单页文本, 页面为空或解析失败时返回 false
func pageText(page pdf.Page) (string, bool) {
	if page.V.IsNull() {
		return "", false
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return text, true
}

// SupportedExtensions 支持的文件扩展名
func (p *PDFParser) SupportedExtensions() []string {
	return []string{".pdf"}
}

// CanParse 检查是否可以解析指定扩展名的文件
func (p *PDFParser) CanParse(extension string) bool {
	return strings.EqualFold(extension, ".pdf")
}
