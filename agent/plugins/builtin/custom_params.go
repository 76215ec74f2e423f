package builtin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/types"
)

// Model parameter fields added by the custom_params plugin.
const (
	TopKField          = "top_k"
	RepeatPenaltyField = "repeat_penalty"
	SeedField          = "seed"
)

// CustomParamsPlugin adds sampling parameters the base records lack.
// They are validated on agent_init and copied into GenerateRequest.Options
// on generate_request.
type CustomParamsPlugin struct {
	mu       sync.RWMutex
	defaults map[string]any
}

var (
	_ plugins.Plugin              = (*CustomParamsPlugin)(nil)
	_ plugins.SchemaExtender      = (*CustomParamsPlugin)(nil)
	_ plugins.Configurable        = (*CustomParamsPlugin)(nil)
	_ plugins.AgentInitHook       = (*CustomParamsPlugin)(nil)
	_ plugins.GenerateRequestHook = (*CustomParamsPlugin)(nil)
)

// NewCustomParamsPlugin creates the custom_params plugin.
func NewCustomParamsPlugin() *CustomParamsPlugin {
	return &CustomParamsPlugin{defaults: map[string]any{}}
}

func (p *CustomParamsPlugin) Name() string    { return CustomParamsName }
func (p *CustomParamsPlugin) Version() string { return "1.0.0" }
func (p *CustomParamsPlugin) Description() string {
	return "Adds top_k, repeat_penalty and seed model parameters"
}

func (p *CustomParamsPlugin) Init(context.Context) error     { return nil }
func (p *CustomParamsPlugin) Shutdown(context.Context) error { return nil }

func paramsSchema() types.Schema {
	return types.Schema{
		TopKField:          {Type: types.FieldInt, Default: 40, Description: "Sample from the k most likely tokens"},
		RepeatPenaltyField: {Type: types.FieldFloat, Default: 1.1, Description: "Penalty for repeated tokens"},
		SeedField:          {Type: types.FieldInt, Description: "Random seed for reproducible output"},
	}
}

// SchemaExtensions implements plugins.SchemaExtender.
func (p *CustomParamsPlugin) SchemaExtensions() map[types.RecordKind]types.Schema {
	return map[types.RecordKind]types.Schema{
		types.KindAgentConfig:     paramsSchema(),
		types.KindGenerateRequest: paramsSchema(),
	}
}

// Configure accepts fallback values for top_k, repeat_penalty and seed,
// used when a request does not carry them.
func (p *CustomParamsPlugin) Configure(settings map[string]any) error {
	schema := paramsSchema()
	defaults := make(map[string]any)
	for _, name := range schema.Names() {
		v, ok := settings[name]
		if !ok {
			continue
		}
		n, err := schema[name].Type.Normalize(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		defaults[name] = n
	}
	if err := validateParams(types.Extensions(defaults)); err != nil {
		return err
	}
	p.mu.Lock()
	p.defaults = defaults
	p.mu.Unlock()
	return nil
}

// OnAgentInit normalizes the parameters present on cfg and rejects
// out-of-range values.
func (p *CustomParamsPlugin) OnAgentInit(_ context.Context, cfg *types.AgentConfig) (*types.AgentConfig, error) {
	if err := normalizeParams(cfg); err != nil {
		return nil, err
	}
	if err := validateParams(cfg.Ext()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OnGenerateRequest copies the parameters into the model options. Options
// already set by the caller win.
func (p *CustomParamsPlugin) OnGenerateRequest(_ context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error) {
	if err := normalizeParams(req); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defaults := p.defaults
	p.mu.RUnlock()

	for _, name := range paramsSchema().Names() {
		v, ok := req.Ext().Get(name)
		if !ok {
			v, ok = defaults[name]
		}
		if !ok {
			continue
		}
		if _, set := req.Options[name]; set {
			continue
		}
		req.SetOption(name, v)
	}
	return req, nil
}

func normalizeParams(rec types.Record) error {
	schema := paramsSchema()
	for _, name := range schema.Names() {
		v, ok := rec.Ext().Get(name)
		if !ok || v == nil {
			continue
		}
		n, err := schema[name].Type.Normalize(v)
		if err != nil {
			return types.NewError(types.ErrInvalidRequest, name).WithCause(err)
		}
		rec.Set(name, n)
	}
	return nil
}

func validateParams(ext types.Extensions) error {
	var errs []error
	if k, ok := ext.Int(TopKField); ok && k < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", TopKField, k))
	}
	if r, ok := ext.Float(RepeatPenaltyField); ok && r <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %g", RepeatPenaltyField, r))
	}
	if s, ok := ext.Int(SeedField); ok && s < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative, got %d", SeedField, s))
	}
	if len(errs) > 0 {
		return types.NewError(types.ErrInvalidConfig, "invalid model parameters").WithCause(errors.Join(errs...))
	}
	return nil
}
