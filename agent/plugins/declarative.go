package plugins

import (
	"context"
	"sort"

	"github.com/BaSui01/aicli/types"
)

// DeclarativePlugin is a plugin defined entirely by a manifest.
// It runs only the hooks its manifest lists.
type DeclarativePlugin struct {
	manifest Manifest
	hooks    []HookName
}

var (
	_ Plugin               = (*DeclarativePlugin)(nil)
	_ SchemaExtender       = (*DeclarativePlugin)(nil)
	_ HookDeclarer         = (*DeclarativePlugin)(nil)
	_ AgentInitHook        = (*DeclarativePlugin)(nil)
	_ GenerateRequestHook  = (*DeclarativePlugin)(nil)
	_ GenerateResponseHook = (*DeclarativePlugin)(nil)
	_ ChatMessageHook      = (*DeclarativePlugin)(nil)
)

// NewDeclarativePlugin creates a plugin from a validated manifest.
func NewDeclarativePlugin(m *Manifest) *DeclarativePlugin {
	p := &DeclarativePlugin{manifest: *m}
	for _, h := range AllHooks() {
		if _, ok := m.Hooks[h]; ok {
			p.hooks = append(p.hooks, h)
		}
	}
	return p
}

func (p *DeclarativePlugin) Name() string        { return p.manifest.Name }
func (p *DeclarativePlugin) Version() string     { return p.manifest.Version }
func (p *DeclarativePlugin) Description() string { return p.manifest.Description }
func (p *DeclarativePlugin) Hooks() []HookName   { return p.hooks }

func (p *DeclarativePlugin) Init(context.Context) error     { return nil }
func (p *DeclarativePlugin) Shutdown(context.Context) error { return nil }

// SchemaExtensions implements SchemaExtender.
func (p *DeclarativePlugin) SchemaExtensions() map[types.RecordKind]types.Schema {
	return p.manifest.Extensions
}

func (p *DeclarativePlugin) OnAgentInit(_ context.Context, cfg *types.AgentConfig) (*types.AgentConfig, error) {
	p.apply(HookAgentInit, cfg)
	return cfg, nil
}

func (p *DeclarativePlugin) OnGenerateRequest(_ context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error) {
	p.apply(HookGenerateRequest, req)
	return req, nil
}

func (p *DeclarativePlugin) OnGenerateResponse(_ context.Context, resp *types.GenerateResponse) (*types.GenerateResponse, error) {
	p.apply(HookGenerateResponse, resp)
	return resp, nil
}

func (p *DeclarativePlugin) OnChatMessage(_ context.Context, msg *types.ChatMessage) (*types.ChatMessage, error) {
	p.apply(HookChatMessage, msg)
	return msg, nil
}

// apply runs defaults, then set, then append, each in field name order.
func (p *DeclarativePlugin) apply(hook HookName, rec types.Record) {
	action, ok := p.manifest.Hooks[hook]
	if !ok {
		return
	}

	for _, name := range sortedKeys(action.Defaults) {
		if !rec.Ext().Has(name) {
			rec.Set(name, copyValue(action.Defaults[name]))
		}
	}
	for _, name := range sortedKeys(action.Set) {
		rec.Set(name, copyValue(action.Set[name]))
	}
	for _, name := range sortedKeys(action.Append) {
		list, _ := rec.Ext().List(name)
		next := make([]any, 0, len(list)+1)
		next = append(next, list...)
		next = append(next, copyValue(action.Append[name]))
		rec.Set(name, next)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyValue(v any) any {
	return types.Extensions{"v": v}.Clone()["v"]
}
