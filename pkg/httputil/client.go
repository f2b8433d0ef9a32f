package httputil

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// defaultUserAgent 出站请求的默认UA, 便于对端识别来源
const defaultUserAgent = "mailrag/1.0"

// Client 面向文档下载场景的HTTP客户端
// 网络错误与5xx按线性退避重试, 4xx视为调用方问题直接返回
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	retries    int
	timeout    time.Duration
}

// ClientOption 客户端配置选项
type ClientOption func(*Client)

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHeaders 合并默认请求头, 同名项覆盖
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithRetries 设置网络错误与5xx状态的重试次数
func WithRetries(retries int) ClientOption {
	return func(c *Client) {
		c.retries = retries
	}
}

// NewClient 创建HTTP客户端, 默认30秒超时且不重试
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		headers: map[string]string{"User-Agent": defaultUserAgent},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{Timeout: c.timeout}
	return c
}

// SetHeader 追加单个默认请求头
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Do 执行HTTP请求
// 默认请求头只在请求未显式设置时生效; 重试耗尽后原样返回最后一次结果
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	var resp *http.Response
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = c.httpClient.Do(req)
		if !shouldRetry(resp, err) || attempt >= c.retries {
			break
		}

		// 重试前释放上一次的连接
		if resp != nil {
			resp.Body.Close()
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resp, err
}

// Get 发送GET请求
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建GET请求失败: %w", err)
	}
	return c.Do(ctx, req)
}

// shouldRetry 网络错误或5xx才重试, 4xx重试也不会变好
func shouldRetry(resp *http.Response, err error) bool {
	return err != nil || resp.StatusCode >= http.StatusInternalServerError
}

// backoff 线性退避, 第n次重试前等待 (n+1)*100ms
func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 100 * time.Millisecond
}
