package rag

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbeddingProvider OpenAI向量化服务提供者
type OpenAIEmbeddingProvider struct {
	client *openai.Client
	model  string // 默认使用 text-embedding-3-small
}

// NewOpenAIEmbeddingProvider 创建OpenAI向量化提供者
// baseURL为空时使用官方地址, 兼容OpenAI协议的自建网关可通过baseURL接入
func NewOpenAIEmbeddingProvider(apiKey, baseURL, model string) *OpenAIEmbeddingProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	// 如果未指定模型,使用默认模型
	if model == "" {
		model = string(openai.SmallEmbedding3) // text-embedding-3-small
	}

	return &OpenAIEmbeddingProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Embed 将文本转换为向量
// ctx: 上下文
// text: 要向量化的文本
// 返回: 向量(float32数组)和错误
func (p *OpenAIEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, &ProviderError{Op: "embed", Provider: "openai", Err: fmt.Errorf("文本不能为空")}
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, &ProviderError{Op: "embed", Provider: "openai", Err: fmt.Errorf("调用Embeddings API失败: %w", err)}
	}

	if len(resp.Data) == 0 {
		return nil, &ProviderError{Op: "embed", Provider: "openai", Err: fmt.Errorf("API返回空向量")}
	}

	return resp.Data[0].Embedding, nil
}

// EmbedBatch 批量向量化文本
// ctx: 上下文
// texts: 要向量化的文本列表
// 返回: 向量列表和错误, 与输入一一对应
func (p *OpenAIEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// OpenAI API 限制每次请求最多2048个输入
	// 如果超过限制,分批处理
	const batchSize = 2048
	allEmbeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := p.embedBatchInternal(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}

		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// embedBatchInternal 内部批量向量化方法
func (p *OpenAIEmbeddingProvider) embedBatchInternal(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, &ProviderError{Op: "embed_batch", Provider: "openai", Err: fmt.Errorf("调用Embeddings API失败: %w", err)}
	}

	if len(resp.Data) != len(texts) {
		return nil, &ProviderError{
			Op:       "embed_batch",
			Provider: "openai",
			Err:      fmt.Errorf("API返回向量数量不匹配: 期望%d, 实际%d", len(texts), len(resp.Data)),
		}
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}

	return embeddings, nil
}

// Dimension 获取向量维度
func (p *OpenAIEmbeddingProvider) Dimension() int {
	// text-embedding-3-small: 1536维
	// text-embedding-3-large: 3072维
	// text-embedding-ada-002: 1536维
	switch p.model {
	case string(openai.LargeEmbedding3):
		return 3072
	case string(openai.SmallEmbedding3), string(openai.AdaEmbeddingV2):
		return 1536
	default:
		return 1536 // 默认维度
	}
}

// Model 获取当前使用的模型
func (p *OpenAIEmbeddingProvider) Model() string {
	return p.model
}
