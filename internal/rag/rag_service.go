package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailrag/internal/metrics"
)

// 固定话术: 语料为空与相似度不足是两种不同的拒答, 措辞必须区分
const (
	// noMatchReply 语料库中检索不到任何内容时的回复
	noMatchReply = "I couldn't find any relevant information to answer your question."

	// lowSimilarityReply 有命中但最高相似度低于准入线时的回复
	lowSimilarityReply = "I don't have enough relevant information to answer your question. " +
		"Could you please rephrase your question or ask about something else?"

	// systemPrompt 生成回答的系统提示词, 回答长度靠maxTokens参数约束
	systemPrompt = "Please provide a clear and concise response based on the " +
		"following context under 300 characters. " +
		"If the context isn't relevant, you can ignore it and answer " +
		"based on your general knowledge."
)

// Response 一次问答的结构化结果
// MaxSimilarity 在语料库完全无内容时为nil, 其余情况为观察到的最高相似度
// DocumentURL 只在带上下文生成的回答中携带
type Response struct {
	Text          string   `json:"text"`
	MaxSimilarity *float64 `json:"max_similarity,omitempty"`
	DocumentURL   string   `json:"document_url,omitempty"`
}

// Options 问答引擎的阈值与检索参数
type Options struct {
	TopK              int     // 检索候选数量
	MinSimilarity     float64 // 准入线: 最高相似度低于该值直接拒答
	ContextSimilarity float64 // 上下文线: 达到该值的命中才拼入上下文
	MaxAnswerTokens   int     // 回答长度上限(Token数)
}

// RAGService 检索增强问答引擎
// 拒答是正常返回值而非错误, 只有提供者或存储故障才返回error
type RAGService struct {
	store     VectorStore
	embedder  EmbeddingProvider
	completer CompletionProvider
	opts      Options
}

// NewRAGService 创建RAG问答服务实例
func NewRAGService(store VectorStore, embedder EmbeddingProvider, completer CompletionProvider, opts Options) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxAnswerTokens <= 0 {
		opts.MaxAnswerTokens = 100
	}

	return &RAGService{
		store:     store,
		embedder:  embedder,
		completer: completer,
		opts:      opts,
	}
}

// Answer 回答一个问题
// 阈值比较全部为闭区间: 恰好等于阈值的相似度按通过处理
func (s *RAGService) Answer(ctx context.Context, question string) (*Response, error) {
	start := time.Now()

	// 1. 向量化问题
	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		metrics.AnswersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// 2. 检索候选, 不在存储层设下限, 以便拒答时报告观察到的最高相似度
	matches, err := s.store.Query(ctx, embedding, s.opts.TopK, 0)
	if err != nil {
		metrics.AnswersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// 3. 语料库中没有任何内容
	if len(matches) == 0 {
		metrics.AnswersTotal.WithLabelValues("declined").Inc()
		return &Response{Text: noMatchReply}, nil
	}

	// 单次遍历找出最高命中
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Similarity > best.Similarity {
			best = m
		}
	}
	metrics.AnswerMaxSimilarity.Observe(best.Similarity)

	// 4. 最高相似度低于准入线, 拒答并附上观察值
	if best.Similarity < s.opts.MinSimilarity {
		metrics.AnswersTotal.WithLabelValues("declined").Inc()
		sim := best.Similarity
		return &Response{Text: lowSimilarityReply, MaxSimilarity: &sim}, nil
	}

	// 5. 达到上下文线的命中按名次顺序拼接
	contextTexts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Similarity >= s.opts.ContextSimilarity {
			contextTexts = append(contextTexts, m.Text)
		}
	}

	// 6. 生成回答: 有上下文时带Context块, 否则退回通用知识作答
	grounded := len(contextTexts) > 0
	userPrompt := question
	if grounded {
		userPrompt = fmt.Sprintf("Context:\n%s\n\nQuestion: %s",
			strings.Join(contextTexts, "\n\n"), question)
	}

	text, err := s.completer.Complete(ctx, systemPrompt, userPrompt, s.opts.MaxAnswerTokens)
	if err != nil {
		metrics.AnswersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// 7. 组装结果, 来源URL只随带上下文的回答返回
	sim := best.Similarity
	resp := &Response{
		Text:          text,
		MaxSimilarity: &sim,
	}
	if grounded {
		resp.DocumentURL = best.DocumentURL
	}

	metrics.AnswerDuration.Observe(time.Since(start).Seconds())
	metrics.AnswersTotal.WithLabelValues("answered").Inc()
	return resp, nil
}
