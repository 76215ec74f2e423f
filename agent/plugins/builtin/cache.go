package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/types"
)

// Cache record fields.
const (
	UseCacheField       = "use_cache"
	CacheKeyField       = "cache_key"
	CachedResponseField = "cached_response"
	FromCacheField      = "from_cache"
)

const (
	defaultCacheTTL        = time.Hour
	defaultCacheMaxEntries = 1000
)

// CacheObserver is told about every cache lookup.
type CacheObserver interface {
	ObserveCache(plugin string, hit bool)
}

// CacheOption configures a CachePlugin.
type CacheOption func(*CachePlugin)

// WithCacheObserver reports lookups to obs. A nil obs is ignored.
func WithCacheObserver(obs CacheObserver) CacheOption {
	return func(p *CachePlugin) {
		if obs != nil {
			p.observer = obs
		}
	}
}

// WithCacheTTL sets how long responses are kept.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(p *CachePlugin) { p.ttl = ttl }
}

// CachePlugin answers repeated generation requests from a ResponseStore.
//
// On generate_request it derives cache_key from model, prompt and system
// and, on a hit, sets cached_response so the generator can skip the model.
// On generate_response it stores fresh responses under cache_key.
// Concurrent lookups of the same key share one store round trip.
type CachePlugin struct {
	logger   *zap.Logger
	observer CacheObserver
	group    singleflight.Group

	mu         sync.RWMutex
	store      ResponseStore
	ownStore   bool
	ttl        time.Duration
	maxEntries int
}

var (
	_ plugins.Plugin               = (*CachePlugin)(nil)
	_ plugins.SchemaExtender       = (*CachePlugin)(nil)
	_ plugins.Configurable         = (*CachePlugin)(nil)
	_ plugins.GenerateRequestHook  = (*CachePlugin)(nil)
	_ plugins.GenerateResponseHook = (*CachePlugin)(nil)
)

// NewCachePlugin creates the cache plugin. A nil store means a bounded
// in-memory store sized by the max_entries setting.
func NewCachePlugin(store ResponseStore, logger *zap.Logger, opts ...CacheOption) *CachePlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &CachePlugin{
		logger:     logger.With(zap.String("plugin", CacheName)),
		observer:   nopCacheObserver{},
		store:      store,
		ttl:        defaultCacheTTL,
		maxEntries: defaultCacheMaxEntries,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = NewMemoryResponseStore(p.maxEntries)
		p.ownStore = true
	}
	return p
}

func (p *CachePlugin) Name() string    { return CacheName }
func (p *CachePlugin) Version() string { return "1.0.0" }
func (p *CachePlugin) Description() string {
	return "Serves repeated generation requests from a response cache"
}

// SchemaExtensions implements plugins.SchemaExtender.
func (p *CachePlugin) SchemaExtensions() map[types.RecordKind]types.Schema {
	key := types.FieldSpec{Type: types.FieldString, Description: "Response cache key"}
	return map[types.RecordKind]types.Schema{
		types.KindGenerateRequest: {
			UseCacheField:       {Type: types.FieldBool, Default: true, Description: "Look up and store the response in the cache"},
			CacheKeyField:       key,
			CachedResponseField: {Type: types.FieldString, Description: "Cached response text, set on a cache hit"},
		},
		types.KindGenerateResponse: {
			FromCacheField: {Type: types.FieldBool, Default: false, Description: "Response was served from the cache"},
			CacheKeyField:  key,
		},
	}
}

// Configure reads ttl (seconds or a duration string) and max_entries.
func (p *CachePlugin) Configure(settings map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := settings["ttl"]; ok {
		ttl, err := parseTTL(v)
		if err != nil {
			return fmt.Errorf("ttl: %w", err)
		}
		p.ttl = ttl
	}
	if v, ok := settings["max_entries"]; ok {
		n, err := types.FieldInt.Normalize(v)
		if err != nil {
			return fmt.Errorf("max_entries: %w", err)
		}
		p.maxEntries = n.(int)
		if p.ownStore {
			p.store = NewMemoryResponseStore(p.maxEntries)
		}
	}
	return nil
}

func (p *CachePlugin) Init(context.Context) error { return nil }

// Shutdown keeps shared stores intact and drops the in-memory one.
func (p *CachePlugin) Shutdown(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ownStore {
		return p.store.Clear(ctx)
	}
	return nil
}

// OnGenerateRequest sets cache_key and, on a hit, cached_response.
func (p *CachePlugin) OnGenerateRequest(ctx context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error) {
	if !p.active(req.Ext()) {
		return req, nil
	}

	key := CacheKey(req.Model, req.Prompt, req.System)
	req.Set(CacheKeyField, key)

	store := p.currentStore()
	v, err, _ := p.group.Do(key, func() (any, error) {
		value, ok, err := store.Get(ctx, key)
		if err != nil || !ok {
			return nil, err
		}
		return value, nil
	})
	if err != nil {
		p.logger.Warn("cache lookup failed", zap.String(CacheKeyField, key), zap.Error(err))
		return req, nil
	}

	hit := v != nil
	p.observer.ObserveCache(CacheName, hit)
	if hit {
		req.Set(CachedResponseField, v.(string))
		p.logger.Debug("cache hit", zap.String(CacheKeyField, key))
	}
	return req, nil
}

// OnGenerateResponse stores completed responses that did not come from the cache.
func (p *CachePlugin) OnGenerateResponse(ctx context.Context, resp *types.GenerateResponse) (*types.GenerateResponse, error) {
	ext := resp.Ext()
	if fromCache, _ := ext.Bool(FromCacheField); fromCache {
		return resp, nil
	}
	resp.Set(FromCacheField, false)

	key := ext.String(CacheKeyField)
	if key == "" || !resp.Done || resp.Response == "" {
		return resp, nil
	}

	p.mu.RLock()
	store, ttl := p.store, p.ttl
	p.mu.RUnlock()

	if err := store.Set(ctx, key, resp.Response, ttl); err != nil {
		p.logger.Warn("cache store failed", zap.String(CacheKeyField, key), zap.Error(err))
	}
	return resp, nil
}

// Clear drops every cached response.
func (p *CachePlugin) Clear(ctx context.Context) error {
	return p.currentStore().Clear(ctx)
}

func (p *CachePlugin) active(ext types.Extensions) bool {
	if use, ok := ext.Bool(UseCacheField); ok {
		return use
	}
	return true
}

func (p *CachePlugin) currentStore() ResponseStore {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store
}

// CacheKey returns the hex sha256 of model, prompt and system.
func CacheKey(model, prompt, system string) string {
	h := sha256.New()
	for _, part := range []string{model, prompt, system} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func parseTTL(v any) (time.Duration, error) {
	if s, ok := v.(string); ok {
		return time.ParseDuration(s)
	}
	n, err := types.FieldFloat.Normalize(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(n.(float64) * float64(time.Second)), nil
}

type nopCacheObserver struct{}

func (nopCacheObserver) ObserveCache(string, bool) {}
