package rag

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIChatProvider OpenAI对话补全服务提供者
type OpenAIChatProvider struct {
	client *openai.Client
	model  string // 默认使用 gpt-4o-mini
}

// NewOpenAIChatProvider 创建OpenAI对话补全提供者
// baseURL为空时使用官方地址
func NewOpenAIChatProvider(apiKey, baseURL, model string) *OpenAIChatProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIChatProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete 对话补全（非流式）
// maxTokens<=0 时不限制回答长度, 由模型自行收尾
func (p *OpenAIChatProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &ProviderError{Op: "complete", Provider: "openai", Err: fmt.Errorf("调用Chat Completions API失败: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Op: "complete", Provider: "openai", Err: fmt.Errorf("API返回空响应")}
	}

	return resp.Choices[0].Message.Content, nil
}

// Model 获取当前使用的模型
func (p *OpenAIChatProvider) Model() string {
	return p.model
}
