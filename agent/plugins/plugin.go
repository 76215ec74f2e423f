package plugins

import (
	"context"

	"github.com/BaSui01/aicli/types"
)

// PluginState represents the lifecycle state of a plugin.
type PluginState string

const (
	PluginStateRegistered  PluginState = "registered"
	PluginStateInitialized PluginState = "initialized"
	PluginStateFailed      PluginState = "failed"
	PluginStateShutdown    PluginState = "shutdown"
)

// Plugin defines a pluggable extension point for aicli.
// Hooks are added by implementing the capability interfaces below.
type Plugin interface {
	// Name returns the unique plugin name.
	Name() string
	// Version returns the plugin version string.
	Version() string
	// Init initializes the plugin. Called by Manager.InitializeAll.
	Init(ctx context.Context) error
	// Shutdown releases the plugin's resources.
	Shutdown(ctx context.Context) error
}

// SchemaExtender is implemented by plugins that add fields to records.
type SchemaExtender interface {
	SchemaExtensions() map[types.RecordKind]types.Schema
}

// Describer is implemented by plugins that carry a human readable description.
type Describer interface {
	Description() string
}

// Configurable is implemented by plugins that accept settings from the
// configuration source. Configure is called before Init.
type Configurable interface {
	Configure(settings map[string]any) error
}

// HookDeclarer narrows the capability set of a plugin that implements more
// hook interfaces than it wants to run. Only the returned hooks are chained.
type HookDeclarer interface {
	Hooks() []HookName
}

// AgentInitHook runs before an agent configuration is finalized.
type AgentInitHook interface {
	OnAgentInit(ctx context.Context, cfg *types.AgentConfig) (*types.AgentConfig, error)
}

// GenerateRequestHook runs before a generation request is dispatched.
type GenerateRequestHook interface {
	OnGenerateRequest(ctx context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error)
}

// GenerateResponseHook runs after a generation result is received.
type GenerateResponseHook interface {
	OnGenerateResponse(ctx context.Context, resp *types.GenerateResponse) (*types.GenerateResponse, error)
}

// ChatMessageHook runs once per message of a conversational exchange.
type ChatMessageHook interface {
	OnChatMessage(ctx context.Context, msg *types.ChatMessage) (*types.ChatMessage, error)
}

// HookName identifies an extension point.
type HookName string

const (
	HookAgentInit        HookName = "agent_init"
	HookGenerateRequest  HookName = "generate_request"
	HookGenerateResponse HookName = "generate_response"
	HookChatMessage      HookName = "chat_message"
)

// AllHooks returns every supported hook in call-site order.
func AllHooks() []HookName {
	return []HookName{HookAgentInit, HookGenerateRequest, HookGenerateResponse, HookChatMessage}
}

// Valid reports whether h is a supported hook.
func (h HookName) Valid() bool {
	return h.RecordKind() != ""
}

// RecordKind returns the record kind threaded through the hook.
func (h HookName) RecordKind() types.RecordKind {
	switch h {
	case HookAgentInit:
		return types.KindAgentConfig
	case HookGenerateRequest:
		return types.KindGenerateRequest
	case HookGenerateResponse:
		return types.KindGenerateResponse
	case HookChatMessage:
		return types.KindChatMessage
	}
	return ""
}

// implements reports whether p implements the hook interface for h.
func implements(p Plugin, h HookName) bool {
	switch h {
	case HookAgentInit:
		_, ok := p.(AgentInitHook)
		return ok
	case HookGenerateRequest:
		_, ok := p.(GenerateRequestHook)
		return ok
	case HookGenerateResponse:
		_, ok := p.(GenerateResponseHook)
		return ok
	case HookChatMessage:
		_, ok := p.(ChatMessageHook)
		return ok
	}
	return false
}

// Capabilities returns the hooks a plugin will be chained for.
func Capabilities(p Plugin) []HookName {
	candidates := AllHooks()
	if d, ok := p.(HookDeclarer); ok {
		declared := make(map[HookName]bool)
		for _, h := range d.Hooks() {
			declared[h] = true
		}
		filtered := candidates[:0]
		for _, h := range candidates {
			if declared[h] {
				filtered = append(filtered, h)
			}
		}
		candidates = filtered
	}

	var hooks []HookName
	for _, h := range candidates {
		if implements(p, h) {
			hooks = append(hooks, h)
		}
	}
	return hooks
}

// Descriptor is the static identity of a plugin as seen by the registry.
type Descriptor struct {
	Name        string                            `json:"name"`
	Version     string                            `json:"version"`
	Description string                            `json:"description,omitempty"`
	Hooks       []HookName                        `json:"hooks"`
	Extensions  map[types.RecordKind]types.Schema `json:"extensions,omitempty"`
}

// Describe builds the descriptor of p.
func Describe(p Plugin) Descriptor {
	d := Descriptor{
		Name:    p.Name(),
		Version: p.Version(),
		Hooks:   Capabilities(p),
	}
	if ds, ok := p.(Describer); ok {
		d.Description = ds.Description()
	}
	if se, ok := p.(SchemaExtender); ok {
		ext := se.SchemaExtensions()
		if len(ext) > 0 {
			d.Extensions = make(map[types.RecordKind]types.Schema, len(ext))
			for kind, schema := range ext {
				d.Extensions[kind] = schema.Clone()
			}
		}
	}
	return d
}

// HasHook reports whether the descriptor declares h.
func (d Descriptor) HasHook(h HookName) bool {
	for _, x := range d.Hooks {
		if x == h {
			return true
		}
	}
	return false
}

// PluginInfo is a point-in-time view of a registered plugin.
type PluginInfo struct {
	Plugin     Plugin       `json:"-"`
	Descriptor Descriptor   `json:"descriptor"`
	Config     PluginConfig `json:"config"`
	State      PluginState  `json:"state"`
}
