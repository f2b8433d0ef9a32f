package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// sentenceBoundary 句子级边界, 段落超过目标大小时的二级切分规则
var sentenceBoundary = regexp.MustCompile(`[^,.;]+[,.;]?`)

// Chunker 文档分块器
// 先按空行切段落, 段落超限再退回句子级边界, 按Token数累积成块
type Chunker struct {
	ChunkSize    int // 分块目标大小(Token数)
	ChunkOverlap int // 相邻分块之间的重叠(Token数)

	encoding *tiktoken.Tiktoken
}

// NewChunker 创建新的分块器
// chunkSize: 每个分块的目标Token数
// chunkOverlap: 相邻分块之间的重叠Token数
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10 // 重叠不超过10%
	}

	enc, err := tiktoken.EncodingForModel("text-embedding-3-small")
	if err != nil {
		// 如果模型未识别，回退到 cl100k_base
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil // 离线环境下退化为估算
		}
	}

	return &Chunker{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		encoding:     enc,
	}
}

// ChunkResult 分块结果
type ChunkResult struct {
	Content    string // 分块内容
	Index      int    // 分块索引(从0开始)
	TokenCount int    // Token数量
}

// textUnit 分块的最小累积单元, 一个段落或一个句子
type textUnit struct {
	text   string
	tokens int
}

// ChunkDocument 对文档进行分块
// 同一文档的分块按出现顺序编号, 索引连续且从0开始
func (c *Chunker) ChunkDocument(content string) ([]*ChunkResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("文档内容不能为空")
	}

	units := c.splitUnits(content)
	if len(units) == 0 {
		return nil, fmt.Errorf("文档没有有效内容")
	}

	chunks := make([]*ChunkResult, 0)
	current := make([]textUnit, 0)
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		texts := make([]string, len(current))
		for i, u := range current {
			texts[i] = u.text
		}
		chunks = append(chunks, &ChunkResult{
			Content:    strings.Join(texts, " "),
			Index:      len(chunks),
			TokenCount: currentTokens,
		})
	}

	for _, u := range units {
		if len(current) > 0 && currentTokens+u.tokens > c.ChunkSize {
			flush()

			// 新块以上一块末尾的重叠部分开头
			current, currentTokens = c.carryOverlap(current)

			// 重叠加上新单元仍超限时放弃重叠, 避免产生纯重叠块
			if currentTokens > 0 && currentTokens+u.tokens > c.ChunkSize {
				current = current[:0]
				currentTokens = 0
			}
		}
		current = append(current, u)
		currentTokens += u.tokens
	}
	flush()

	return chunks, nil
}

// splitUnits 将文本切分成累积单元
// 先按空行切段落; 段落Token数超过目标大小时退回句子级边界
func (c *Chunker) splitUnits(content string) []textUnit {
	paragraphs := strings.Split(content, "\n\n")
	units := make([]textUnit, 0, len(paragraphs))

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		tokens := c.CountTokens(para)
		if tokens <= c.ChunkSize {
			units = append(units, textUnit{text: para, tokens: tokens})
			continue
		}

		for _, piece := range sentenceBoundary.FindAllString(para, -1) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			units = append(units, textUnit{text: piece, tokens: c.CountTokens(piece)})
		}
	}

	return units
}

// carryOverlap 从已输出分块的末尾取重叠单元
// 从后向前累加, 总Token数不超过ChunkOverlap
func (c *Chunker) carryOverlap(units []textUnit) ([]textUnit, int) {
	if c.ChunkOverlap <= 0 {
		return make([]textUnit, 0), 0
	}

	total := 0
	i := len(units)
	for i > 0 {
		if total+units[i-1].tokens > c.ChunkOverlap {
			break
		}
		total += units[i-1].tokens
		i--
	}

	carried := make([]textUnit, len(units)-i)
	copy(carried, units[i:])
	return carried, total
}

// CountTokens 计算文本的Token数量
func (c *Chunker) CountTokens(text string) int {
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return estimateTokenCount(text)
}

// estimateTokenCount 估算Token数量
// 简单规则: 英文按单词数, 中文按字符数/1.5
func estimateTokenCount(text string) int {
	words := strings.Fields(text)
	wordCount := len(words)

	chineseCount := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 { // 基本汉字Unicode范围
			chineseCount++
		}
	}

	return wordCount + int(float64(chineseCount)/1.5)
}
