package parsers

import "io"

// Parser 文档文本抽取器接口
type Parser interface {
	// Parse 从 reader 读取并抽取纯文本内容
	Parse(reader io.Reader) (string, error)

	// SupportedExtensions 返回支持的文件扩展名列表(如 ".pdf")
	SupportedExtensions() []string

	// CanParse 检查是否支持指定扩展名
	CanParse(extension string) bool
}
