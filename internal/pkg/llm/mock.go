package llm

import (
	"context"
	"sync"
)

// MockClient 测试用客户端
type MockClient struct {
	GenerateFunc func(ctx context.Context, system, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, prompt)
	}
	return "{}", nil
}

func (m *MockClient) Close() error { return nil }

// Prompts 已收到的提示词
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// NewStaticClient 总是返回固定文本
func NewStaticClient(text string) *MockClient {
	return &MockClient{
		GenerateFunc: func(_ context.Context, _, _ string) (string, error) {
			return text, nil
		},
	}
}

// NewFailingClient 总是返回指定错误
func NewFailingClient(err error) *MockClient {
	return &MockClient{
		GenerateFunc: func(_ context.Context, _, _ string) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutClient 阻塞直到 context 结束
func NewTimeoutClient() *MockClient {
	return &MockClient{
		GenerateFunc: func(ctx context.Context, _, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}
