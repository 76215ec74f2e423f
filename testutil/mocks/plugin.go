package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/types"
)

// ScriptedPlugin 是可编排的插件模拟实现。
// 每个钩子由对应的函数字段驱动，未设置的钩子原样返回记录。
type ScriptedPlugin struct {
	PluginName    string
	PluginVersion string
	Extensions    map[types.RecordKind]types.Schema
	DeclaredHooks []plugins.HookName

	InitErr     error
	ShutdownErr error

	AgentInit        func(ctx context.Context, cfg *types.AgentConfig) (*types.AgentConfig, error)
	GenerateRequest  func(ctx context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error)
	GenerateResponse func(ctx context.Context, resp *types.GenerateResponse) (*types.GenerateResponse, error)
	ChatMessage      func(ctx context.Context, msg *types.ChatMessage) (*types.ChatMessage, error)

	mu    sync.Mutex
	calls map[string]int
}

var (
	_ plugins.Plugin               = (*ScriptedPlugin)(nil)
	_ plugins.SchemaExtender       = (*ScriptedPlugin)(nil)
	_ plugins.HookDeclarer         = (*ScriptedPlugin)(nil)
	_ plugins.AgentInitHook        = (*ScriptedPlugin)(nil)
	_ plugins.GenerateRequestHook  = (*ScriptedPlugin)(nil)
	_ plugins.GenerateResponseHook = (*ScriptedPlugin)(nil)
	_ plugins.ChatMessageHook      = (*ScriptedPlugin)(nil)
)

// NewScriptedPlugin 创建插件，钩子通过函数字段设置。
func NewScriptedPlugin(name string) *ScriptedPlugin {
	return &ScriptedPlugin{PluginName: name, PluginVersion: "1.0.0", calls: make(map[string]int)}
}

func (p *ScriptedPlugin) Name() string    { return p.PluginName }
func (p *ScriptedPlugin) Version() string { return p.PluginVersion }

func (p *ScriptedPlugin) Init(context.Context) error {
	p.record("init")
	return p.InitErr
}

func (p *ScriptedPlugin) Shutdown(context.Context) error {
	p.record("shutdown")
	return p.ShutdownErr
}

// SchemaExtensions 实现 plugins.SchemaExtender
func (p *ScriptedPlugin) SchemaExtensions() map[types.RecordKind]types.Schema {
	return p.Extensions
}

// Hooks 返回显式声明的钩子，未声明时返回已设置函数的钩子
func (p *ScriptedPlugin) Hooks() []plugins.HookName {
	if len(p.DeclaredHooks) > 0 {
		return p.DeclaredHooks
	}
	var hooks []plugins.HookName
	if p.AgentInit != nil {
		hooks = append(hooks, plugins.HookAgentInit)
	}
	if p.GenerateRequest != nil {
		hooks = append(hooks, plugins.HookGenerateRequest)
	}
	if p.GenerateResponse != nil {
		hooks = append(hooks, plugins.HookGenerateResponse)
	}
	if p.ChatMessage != nil {
		hooks = append(hooks, plugins.HookChatMessage)
	}
	return hooks
}

func (p *ScriptedPlugin) OnAgentInit(ctx context.Context, cfg *types.AgentConfig) (*types.AgentConfig, error) {
	p.record(string(plugins.HookAgentInit))
	if p.AgentInit == nil {
		return cfg, nil
	}
	return p.AgentInit(ctx, cfg)
}

func (p *ScriptedPlugin) OnGenerateRequest(ctx context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error) {
	p.record(string(plugins.HookGenerateRequest))
	if p.GenerateRequest == nil {
		return req, nil
	}
	return p.GenerateRequest(ctx, req)
}

func (p *ScriptedPlugin) OnGenerateResponse(ctx context.Context, resp *types.GenerateResponse) (*types.GenerateResponse, error) {
	p.record(string(plugins.HookGenerateResponse))
	if p.GenerateResponse == nil {
		return resp, nil
	}
	return p.GenerateResponse(ctx, resp)
}

func (p *ScriptedPlugin) OnChatMessage(ctx context.Context, msg *types.ChatMessage) (*types.ChatMessage, error) {
	p.record(string(plugins.HookChatMessage))
	if p.ChatMessage == nil {
		return msg, nil
	}
	return p.ChatMessage(ctx, msg)
}

// Calls 返回指定钩子或生命周期阶段（init/shutdown）的调用次数
func (p *ScriptedPlugin) Calls(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *ScriptedPlugin) record(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[name]++
}
