package parsers

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	docxTextPattern   = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	docxParaPattern   = regexp.MustCompile(`(?s)<w:p[\s>].*?</w:p>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// DocxParser Word 文档解析器（.docx）。
// .docx 是 ZIP 容器, 正文在 word/document.xml 里, 文本位于 w:p 段落下的 w:t 节点。
type DocxParser struct{}

// NewDocxParser 创建 DOCX 解析器
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

// Parse 解析 DOCX 文档, 按段落提取正文, 段落之间用换行分隔
func (p *DocxParser) Parse(reader io.Reader) (string, error) {
	// zip 需要 ReaderAt, 先整体读入
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文档失败: %w", err)
	}

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开 DOCX 失败: %w", err)
	}

	body, err := readArchiveEntry(archive, "word/document.xml")
	if err != nil {
		return "", err
	}

	text, err := extractParagraphs(body)
	if err != nil {
		// XML 流解析失败时退回正则提取
		return extractParagraphsByRegex(body), nil
	}
	return text, nil
}

// SupportedExtensions 支持的扩展名
func (p *DocxParser) SupportedExtensions() []string {
	return []string{".docx"}
}

// CanParse 检查是否支持该扩展名
func (p *DocxParser) CanParse(ext string) bool {
	return ext == ".docx"
}

// readArchiveEntry 读取 ZIP 包内指定路径的文件
func readArchiveEntry(archive *zip.Reader, name string) ([]byte, error) {
	for _, file := range archive.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("打开 %s 失败: %w", name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("读取 %s 失败: %w", name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("无效的 DOCX 文件：找不到 %s", name)
}

// extractParagraphs 流式遍历 XML, 按 w:p 段落聚合 w:t 文本。
// 用本地名匹配元素, 不依赖 w: 前缀的具体写法。
func extractParagraphs(body []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))

	var (
		doc       strings.Builder
		paragraph strings.Builder
		inText    bool
	)

	flush := func() {
		text := strings.TrimSpace(paragraph.String())
		paragraph.Reset()
		if text == "" {
			return
		}
		if doc.Len() > 0 {
			doc.WriteString("\n")
		}
		doc.WriteString(text)
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch tok := token.(type) {
		case xml.StartElement:
			if tok.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch tok.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(tok)
			}
		}
	}

	flush()
	return doc.String(), nil
}

// extractParagraphsByRegex 正则提取, 兜底处理结构损坏的文档
func extractParagraphsByRegex(body []byte) string {
	content := string(body)

	var paragraphs []string
	for _, para := range docxParaPattern.FindAllString(content, -1) {
		var runs []string
		for _, m := range docxTextPattern.FindAllStringSubmatch(para, -1) {
			runs = append(runs, m[1])
		}
		if text := strings.TrimSpace(strings.Join(runs, "")); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n")
	}

	// 没有段落结构时退化为拼接所有文本节点
	var texts []string
	for _, m := range docxTextPattern.FindAllStringSubmatch(content, -1) {
		if m[1] != "" {
			texts = append(texts, m[1])
		}
	}
	return strings.Join(texts, " ")
}

// DocParser 旧版 .doc 文件解析器（二进制格式）。
// .doc 是 OLE 复合文档, 完整解析需要专门的库, 这里只做可打印文本的启发式提取。
type DocParser struct{}

// NewDocParser 创建 DOC 解析器
func NewDocParser() *DocParser {
	return &DocParser{}
}

// Parse 解析 DOC 文档
func (p *DocParser) Parse(reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文档失败: %w", err)
	}

	text := extractPrintableRuns(data)
	if text == "" {
		return "", fmt.Errorf("无法从 .doc 文件提取文本，建议转换为 .docx 格式")
	}
	return text, nil
}

// SupportedExtensions 支持的扩展名
func (p *DocParser) SupportedExtensions() []string {
	return []string{".doc"}
}

// CanParse 检查是否支持该扩展名
func (p *DocParser) CanParse(ext string) bool {
	return ext == ".doc"
}

// extractPrintableRuns 收集长度不小于 2 的连续可打印片段, 过滤二进制噪声
func extractPrintableRuns(data []byte) string {
	printable := func(b byte) bool {
		return (b >= 32 && b <= 126) || b == '\n' || b == '\r' || b == '\t'
	}

	var runs []string
	start := -1
	for i, b := range data {
		if printable(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if run := data[start:i]; len(run) >= 2 {
				runs = append(runs, string(run))
			}
			start = -1
		}
	}
	if start >= 0 && len(data)-start >= 2 {
		runs = append(runs, string(data[start:]))
	}

	joined := strings.Join(runs, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(joined, " "))
}
