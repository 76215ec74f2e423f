package plugins

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/aicli/types"
)

// hookRecord is satisfied by the pointer record types threaded through hooks.
type hookRecord[T any] interface {
	comparable
	types.Record
	Clone() T
}

type hookCall[T any] func(ctx context.Context, p Plugin, in T) (T, error)

// RunHook runs hook over the enabled plugins that implement it and returns
// the transformed record. Plugin failures are logged and skipped; the only
// errors returned are caller errors (unknown hook, wrong record kind) and
// context cancellation, in which case the record built so far is returned.
func (m *Manager) RunHook(ctx context.Context, hook HookName, rec types.Record) (types.Record, error) {
	if !hook.Valid() {
		return rec, fmt.Errorf("%w: %q", ErrUnknownHook, hook)
	}
	if rec == nil || rec.Kind() != hook.RecordKind() {
		return rec, fmt.Errorf("%w: %s expects %s", ErrRecordKind, hook, hook.RecordKind())
	}

	switch r := rec.(type) {
	case *types.AgentConfig:
		out, err := m.ProcessAgentConfig(ctx, r)
		return out, err
	case *types.GenerateRequest:
		out, err := m.ProcessGenerateRequest(ctx, r)
		return out, err
	case *types.GenerateResponse:
		out, err := m.ProcessGenerateResponse(ctx, r)
		return out, err
	case *types.ChatMessage:
		out, err := m.ProcessChatMessage(ctx, r)
		return out, err
	}
	return rec, fmt.Errorf("%w: unsupported record type %T", ErrRecordKind, rec)
}

// ProcessAgentConfig runs the agent_init hook.
func (m *Manager) ProcessAgentConfig(ctx context.Context, cfg *types.AgentConfig) (*types.AgentConfig, error) {
	return runChain(ctx, m, HookAgentInit, cfg, func(ctx context.Context, p Plugin, in *types.AgentConfig) (*types.AgentConfig, error) {
		return p.(AgentInitHook).OnAgentInit(ctx, in)
	})
}

// ProcessGenerateRequest runs the generate_request hook.
func (m *Manager) ProcessGenerateRequest(ctx context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error) {
	return runChain(ctx, m, HookGenerateRequest, req, func(ctx context.Context, p Plugin, in *types.GenerateRequest) (*types.GenerateRequest, error) {
		return p.(GenerateRequestHook).OnGenerateRequest(ctx, in)
	})
}

// ProcessGenerateResponse runs the generate_response hook.
func (m *Manager) ProcessGenerateResponse(ctx context.Context, resp *types.GenerateResponse) (*types.GenerateResponse, error) {
	return runChain(ctx, m, HookGenerateResponse, resp, func(ctx context.Context, p Plugin, in *types.GenerateResponse) (*types.GenerateResponse, error) {
		return p.(GenerateResponseHook).OnGenerateResponse(ctx, in)
	})
}

// ProcessChatMessage runs the chat_message hook.
func (m *Manager) ProcessChatMessage(ctx context.Context, msg *types.ChatMessage) (*types.ChatMessage, error) {
	return runChain(ctx, m, HookChatMessage, msg, func(ctx context.Context, p Plugin, in *types.ChatMessage) (*types.ChatMessage, error) {
		return p.(ChatMessageHook).OnChatMessage(ctx, in)
	})
}

func runChain[T hookRecord[T]](ctx context.Context, m *Manager, hook HookName, rec T, call hookCall[T]) (T, error) {
	var zero T
	if rec == zero {
		return rec, fmt.Errorf("%w: nil %s", ErrRecordKind, hook.RecordKind())
	}

	chain := m.registry.Chain(hook)
	ctx, span := m.tracer.Start(ctx, "plugins.run_hook",
		trace.WithAttributes(
			attribute.String("plugin.hook", string(hook)),
			attribute.Int("plugin.chain_length", len(chain)),
		))
	defer span.End()

	current := rec
	failures := 0
	for _, p := range chain {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "hook chain cancelled")
			m.logger.Warn("hook chain cancelled",
				zap.String("hook", string(hook)),
				zap.String("next_plugin", p.Name()),
				zap.Error(err))
			return current, err
		}
		out, err := invokeHook(ctx, m, hook, p, current, call)
		if err != nil {
			failures++
			continue
		}
		current = out
	}

	span.SetAttributes(attribute.Int("plugin.failures", failures))
	return current, nil
}

// invokeHook calls one plugin on a clone of in. On failure in is returned
// unchanged together with a *HookExecutionError.
func invokeHook[T hookRecord[T]](ctx context.Context, m *Manager, hook HookName, p Plugin, in T, call hookCall[T]) (T, error) {
	name := p.Name()
	ctx, span := m.tracer.Start(ctx, "plugins.call",
		trace.WithAttributes(
			attribute.String("plugin.hook", string(hook)),
			attribute.String("plugin.name", name),
		))
	defer span.End()

	start := time.Now()
	out, err := safeHookCall(ctx, p, in.Clone(), call)
	duration := time.Since(start)

	if err != nil {
		herr := &HookExecutionError{Plugin: name, Hook: hook, Err: err}
		span.RecordError(herr)
		span.SetStatus(codes.Error, herr.Error())
		m.logger.Error("plugin hook failed",
			zap.String("plugin", name),
			zap.String("hook", string(hook)),
			zap.Duration("duration", duration),
			zap.Error(err))
		m.observer.ObserveHook(string(hook), name, duration, herr)
		return in, herr
	}

	m.observer.ObserveHook(string(hook), name, duration, nil)
	return out, nil
}

func safeHookCall[T hookRecord[T]](ctx context.Context, p Plugin, in T, call hookCall[T]) (out T, err error) {
	var zero T
	defer func() {
		if r := recover(); r != nil {
			out, err = zero, fmt.Errorf("panic: %v", r)
		}
	}()

	out, err = call(ctx, p, in)
	if err == nil && out == zero {
		err = errNilRecord
	}
	return out, err
}
