package parsers

import (
	"html"
	"io"
	"regexp"
	"strings"
)

// 正文范围按优先级尝试, 都没有时用整个文档
var contentScopes = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<main[^>]*>(.*?)</main>`),
	regexp.MustCompile(`(?is)<article[^>]*>(.*?)</article>`),
	regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`),
}

// RE2 不支持反向引用, 噪声标签逐个编译
var noisePatterns = func() []*regexp.Regexp {
	tags := []string{"script", "style", "nav", "header", "footer", "aside", "noscript"}
	patterns := make([]*regexp.Regexp, 0, len(tags)+1)
	for _, tag := range tags {
		patterns = append(patterns, regexp.MustCompile(`(?is)<`+tag+`[^>]*>.*?</`+tag+`>`))
	}
	return append(patterns, regexp.MustCompile(`(?s)<!--.*?-->`))
}()

var (
	blockEndPattern  = regexp.MustCompile(`(?i)</(p|div|section|h[1-6]|li|tr|table|ul|ol|blockquote|pre)>`)
	lineBreakPattern = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	anyTagPattern    = regexp.MustCompile(`<[^>]+>`)
	spaceRunPattern  = regexp.MustCompile(`[ \t\x{00a0}]+`)
	blankLinePattern = regexp.MustCompile(`\n\s*\n+`)
)

// HTMLParser HTML 文档解析器
type HTMLParser struct{}

// NewHTMLParser 创建 HTML 解析器
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Parse 解析 HTML 文档, 提取正文并剥除标签
func (p *HTMLParser) Parse(reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	return cleanHTML(scopeContent(string(data))), nil
}

// SupportedExtensions 支持的扩展名
func (p *HTMLParser) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}

// CanParse 检查是否支持该扩展名
func (p *HTMLParser) CanParse(ext string) bool {
	return ext == ".html" || ext == ".htm"
}

// scopeContent 选取正文范围, 依次尝试 main, article, body
func scopeContent(doc string) string {
	for _, scope := range contentScopes {
		if m := scope.FindStringSubmatch(doc); len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			return m[1]
		}
	}
	return doc
}

// cleanHTML 去掉脚本与导航等噪声, 块级边界转换行, 剥除标签后解码实体
func cleanHTML(fragment string) string {
	for _, pattern := range noisePatterns {
		fragment = pattern.ReplaceAllString(fragment, "")
	}

	fragment = blockEndPattern.ReplaceAllString(fragment, "\n")
	fragment = lineBreakPattern.ReplaceAllString(fragment, "\n")
	text := anyTagPattern.ReplaceAllString(fragment, " ")

	// 实体解码放在剥标签之后, 编码过的尖括号不会被当作标签剥掉
	text = html.UnescapeString(text)

	text = spaceRunPattern.ReplaceAllString(text, " ")
	text = blankLinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
