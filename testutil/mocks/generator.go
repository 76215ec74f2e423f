// MockGenerator 模型服务客户端的测试模拟实现。
//
// 支持固定响应、错误注入、延迟与调用记录。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/aicli/llm"
	"github.com/BaSui01/aicli/types"
)

// --- MockGenerator 结构 ---

// MockGenerator 是 llm.Generator 的模拟实现
type MockGenerator struct {
	mu sync.RWMutex

	// 响应配置
	response string
	reply    string
	err      error

	// Token 使用统计
	promptTokens int
	evalTokens   int

	// 行为控制
	delay        time.Duration
	generateFunc func(ctx context.Context, req *types.GenerateRequest) (*types.GenerateResponse, error)

	// 调用记录
	requests []*types.GenerateRequest
	chats    []*llm.ChatRequest
}

var _ llm.Generator = (*MockGenerator)(nil)

// --- 构造函数和 Builder 方法 ---

// NewMockGenerator 创建新的 MockGenerator
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		response:     "Mock response",
		reply:        "Mock reply",
		promptTokens: 10,
		evalTokens:   20,
	}
}

// WithResponse 设置 Generate 的固定响应内容
func (m *MockGenerator) WithResponse(response string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithReply 设置 Chat 的固定回复内容
func (m *MockGenerator) WithReply(reply string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
	return m
}

// WithError 设置返回错误
func (m *MockGenerator) WithError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithTokenUsage 设置 Token 使用量
func (m *MockGenerator) WithTokenUsage(prompt, eval int) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.evalTokens = eval
	return m
}

// WithDelay 设置响应延迟
func (m *MockGenerator) WithDelay(d time.Duration) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithGenerateFunc 设置自定义 Generate 函数
func (m *MockGenerator) WithGenerateFunc(fn func(ctx context.Context, req *types.GenerateRequest) (*types.GenerateResponse, error)) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateFunc = fn
	return m
}

// --- Generator 接口实现 ---

// Generate 记录请求并返回配置的响应
func (m *MockGenerator) Generate(ctx context.Context, req *types.GenerateRequest) (*types.GenerateResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req.Clone())
	fn, delay, err := m.generateFunc, m.delay, m.err
	resp := &types.GenerateResponse{
		Model:           req.Model,
		Response:        m.response,
		Done:            true,
		PromptEvalCount: m.promptTokens,
		EvalCount:       m.evalTokens,
	}
	m.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Chat 记录请求并返回配置的回复
func (m *MockGenerator) Chat(ctx context.Context, req *llm.ChatRequest) (*types.ChatMessage, error) {
	m.mu.Lock()
	clone := &llm.ChatRequest{Model: req.Model, Options: req.Options}
	for _, msg := range req.Messages {
		clone.Messages = append(clone.Messages, msg.Clone())
	}
	m.chats = append(m.chats, clone)
	delay, err, reply := m.delay, m.err, m.reply
	m.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return types.NewChatMessage(types.RoleAssistant, reply), nil
}

// --- 调用记录 ---

// Requests 返回 Generate 收到的请求副本
func (m *MockGenerator) Requests() []*types.GenerateRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*types.GenerateRequest(nil), m.requests...)
}

// Chats 返回 Chat 收到的请求副本
func (m *MockGenerator) Chats() []*llm.ChatRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*llm.ChatRequest(nil), m.chats...)
}

// CallCount 返回 Generate 与 Chat 的总调用次数
func (m *MockGenerator) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests) + len(m.chats)
}

// Reset 清空调用记录
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.chats = nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
