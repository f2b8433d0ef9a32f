package parsers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Registry 按文件扩展名分发的解析器注册表
type Registry struct {
	parsers []Parser
}

// NewRegistry 创建带默认解析器的注册表
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make([]Parser, 0),
	}

	r.Register(NewTextParser())
	r.Register(NewPDFParser())
	r.Register(NewDocxParser())
	r.Register(NewDocParser())
	r.Register(NewHTMLParser())

	return r
}

// Register 注册一个解析器
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Supports 检查是否有解析器支持该扩展名
func (r *Registry) Supports(extension string) bool {
	ext := strings.ToLower(extension)
	for _, p := range r.parsers {
		if p.CanParse(ext) {
			return true
		}
	}
	return false
}

// Parse 按文件名选择解析器并抽取文本
func (r *Registry) Parse(fileName string, reader io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	for _, p := range r.parsers {
		if p.CanParse(ext) {
			return p.Parse(reader)
		}
	}

	return "", fmt.Errorf("不支持的文件类型: %s", ext)
}

// ParseFile 打开指定路径的文件并抽取文本内容
func (r *Registry) ParseFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开文件失败 %s: %w", path, err)
	}
	defer f.Close()

	return r.Parse(filepath.Base(path), f)
}
