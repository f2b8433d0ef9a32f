package parsers

import (
	"fmt"
	"io"
	"strings"
)

// TextParser 文本文件解析器
// 支持: .txt, .md, .markdown
type TextParser struct{}

// NewTextParser 创建文本解析器
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse 解析文本文件, Markdown 原样读入不做渲染
func (p *TextParser) Parse(reader io.Reader) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}

	// Windows 导出的文本常带 UTF-8 BOM
	text := strings.TrimPrefix(string(content), "﻿")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("文件内容为空")
	}

	return text, nil
}

// SupportedExtensions 支持的文件扩展名
func (p *TextParser) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// CanParse 检查是否可以解析指定扩展名的文件
func (p *TextParser) CanParse(extension string) bool {
	switch strings.ToLower(extension) {
	case ".txt", ".md", ".markdown":
		return true
	default:
		return false
	}
}
