package rag

import "context"

// EmbeddingProvider 抽象不同向量模型/服务的统一接口。
type EmbeddingProvider interface {
	// Embed 为单条文本生成向量
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch 为一批文本生成向量, 结果与输入一一对应
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension 返回该模型输出的向量维度
	Dimension() int
	// Model 返回模型名称
	Model() string
}

// CompletionProvider 抽象对话补全服务的统一接口。
// maxTokens 限制回答长度, 回答长度只通过该参数控制而不做字符串截断。
type CompletionProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}
