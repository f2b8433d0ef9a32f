package rag

import "fmt"

// ProviderError 嵌入或补全服务调用失败。
// 检索与回答流程不会把它降级成拒答，由调用方决定如何呈现。
type ProviderError struct {
	Op       string // embed / complete
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StoreError 向量存储读写失败（维度不匹配、约束冲突、连接异常等）。
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
