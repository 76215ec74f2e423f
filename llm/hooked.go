package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/agent/plugins/builtin"
	"github.com/BaSui01/aicli/types"
)

// HookRunner runs plugin hooks over records. *plugins.Manager implements it.
type HookRunner interface {
	ProcessGenerateRequest(ctx context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error)
	ProcessGenerateResponse(ctx context.Context, resp *types.GenerateResponse) (*types.GenerateResponse, error)
	ProcessChatMessage(ctx context.Context, msg *types.ChatMessage) (*types.ChatMessage, error)
	ResolveSchema(kind types.RecordKind) plugins.ResolvedSchema
	ApplyDefaults(rec types.Record)
}

var _ HookRunner = (*plugins.Manager)(nil)

// HookedGenerator wraps a Generator with the generate_request,
// generate_response and chat_message hooks. It performs no I/O itself.
//
// A request whose hooks set cached_response is answered without calling
// the wrapped generator; the response then carries from_cache = true.
// Plugin fields declared on both the request and the response schema
// (log_id, cache_key) are carried from the request to the response.
type HookedGenerator struct {
	next    Generator
	hooks   HookRunner
	handler Handler
	logger  *zap.Logger
}

var _ Generator = (*HookedGenerator)(nil)

// HookedOption configures a HookedGenerator.
type HookedOption func(*hookedOptions)

type hookedOptions struct {
	logger      *zap.Logger
	middlewares []Middleware
}

// WithHookedLogger sets the logger.
func WithHookedLogger(logger *zap.Logger) HookedOption {
	return func(o *hookedOptions) { o.logger = logger }
}

// WithMiddleware wraps calls to the underlying generator. Middleware sees
// the request after the request hooks ran and is skipped on cache hits.
func WithMiddleware(mw ...Middleware) HookedOption {
	return func(o *hookedOptions) { o.middlewares = append(o.middlewares, mw...) }
}

// NewHookedGenerator wraps next with hooks.
func NewHookedGenerator(next Generator, hooks HookRunner, opts ...HookedOption) *HookedGenerator {
	o := hookedOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &HookedGenerator{
		next:    next,
		hooks:   hooks,
		handler: NewChain(o.middlewares...).Then(next.Generate),
		logger:  o.logger.With(zap.String("component", "hooked_generator")),
	}
}

// Generate runs the request hooks, generates or serves the cached answer,
// then runs the response hooks. req is not modified.
func (g *HookedGenerator) Generate(ctx context.Context, req *types.GenerateRequest) (*types.GenerateResponse, error) {
	if req == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "nil generate request")
	}

	in := req.Clone()
	g.hooks.ApplyDefaults(in)
	in, err := g.hooks.ProcessGenerateRequest(ctx, in)
	if err != nil {
		return nil, err
	}

	var resp *types.GenerateResponse
	if cached := in.Ext().String(builtin.CachedResponseField); cached != "" {
		resp = &types.GenerateResponse{Model: in.Model, Response: cached, Done: true}
		resp.Set(builtin.FromCacheField, true)
		g.logger.Debug("serving cached response", zap.String("model", in.Model))
	} else {
		resp, err = g.handler(ctx, in)
		if err != nil {
			return nil, types.NewError(types.ErrUpstreamError, "generate").WithCause(err)
		}
		if resp == nil {
			return nil, types.NewError(types.ErrUpstreamError, "generator returned no response")
		}
	}

	g.carryOver(in, resp)
	g.hooks.ApplyDefaults(resp)
	return g.hooks.ProcessGenerateResponse(ctx, resp)
}

// Chat runs the chat_message hook over every outgoing message and over the
// reply. The caller's messages are not modified.
func (g *HookedGenerator) Chat(ctx context.Context, req *ChatRequest) (*types.ChatMessage, error) {
	if req == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "nil chat request")
	}

	out := &ChatRequest{Model: req.Model, Options: req.Options, Messages: make([]*types.ChatMessage, 0, len(req.Messages))}
	for _, msg := range req.Messages {
		if msg == nil {
			return nil, types.NewError(types.ErrInvalidRequest, "nil chat message")
		}
		processed, err := g.processMessage(ctx, msg.Clone())
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, processed)
	}

	reply, err := g.next.Chat(ctx, out)
	if err != nil {
		var te *types.Error
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, types.NewError(types.ErrUpstreamError, "chat").WithCause(err)
	}
	if reply == nil {
		return nil, types.NewError(types.ErrUpstreamError, "generator returned no reply")
	}
	return g.processMessage(ctx, reply)
}

func (g *HookedGenerator) processMessage(ctx context.Context, msg *types.ChatMessage) (*types.ChatMessage, error) {
	g.hooks.ApplyDefaults(msg)
	return g.hooks.ProcessChatMessage(ctx, msg)
}

// carryOver copies plugin fields present on req and declared on both
// record kinds onto resp, unless resp already has them.
func (g *HookedGenerator) carryOver(req *types.GenerateRequest, resp *types.GenerateResponse) {
	respFields := g.hooks.ResolveSchema(types.KindGenerateResponse).Extensions()
	reqFields := g.hooks.ResolveSchema(types.KindGenerateRequest).Extensions()
	for _, name := range reqFields.Names() {
		if _, shared := respFields[name]; !shared {
			continue
		}
		v, ok := req.Ext().Get(name)
		if !ok || resp.Ext().Has(name) {
			continue
		}
		resp.Set(name, v)
	}
}
