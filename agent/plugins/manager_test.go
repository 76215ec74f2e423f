package plugins

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/aicli/types"
)

type failingStore struct {
	saves int
}

func (s *failingStore) Load(context.Context) (map[string]ConfigEntry, error) {
	return nil, errors.New("store offline")
}

func (s *failingStore) Save(context.Context, string, PluginConfig) error {
	s.saves++
	return errors.New("store offline")
}

func TestManager_EnableDisablePersist(t *testing.T) {
	ctx := context.Background()
	store := NewFileStateStore(filepath.Join(t.TempDir(), "plugins.json"))
	m := NewManager(WithStateStore(store))
	require.NoError(t, m.Register(newRequestPlugin("cache", nil), withPriority(50)))

	require.NoError(t, m.Disable(ctx, "cache"))
	require.NoError(t, m.SetPriority(ctx, "cache", 75))

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, entries, "cache")
	assert.False(t, *entries["cache"].Enabled)
	assert.Equal(t, 75, *entries["cache"].Priority)

	require.NoError(t, m.Enable(ctx, "cache"))
	entries, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, *entries["cache"].Enabled)

	// a fresh manager picks the state up
	next := NewManager(WithStateStore(store))
	require.NoError(t, next.LoadConfig(ctx))
	require.NoError(t, next.Register(newRequestPlugin("cache", nil)))
	info, err := next.Registry().Info("cache")
	require.NoError(t, err)
	assert.Equal(t, 75, info.Config.Priority)
}

func TestManager_PersistFailureKeepsChange(t *testing.T) {
	store := &failingStore{}
	m := NewManager(WithStateStore(store))
	require.NoError(t, m.Register(newRequestPlugin("p", nil)))

	err := m.Disable(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
	assert.Equal(t, 1, store.saves)

	info, _ := m.Registry().Info("p")
	assert.False(t, info.Config.Enabled)
	assert.Empty(t, m.Registry().Chain(HookGenerateRequest))

	assert.Error(t, m.LoadConfig(context.Background()))
}

func TestManager_MutationsNotFound(t *testing.T) {
	m := NewManager(WithStateStore(&failingStore{}))
	ctx := context.Background()
	assert.ErrorIs(t, m.Enable(ctx, "x"), ErrPluginNotFound)
	assert.ErrorIs(t, m.Disable(ctx, "x"), ErrPluginNotFound)
	assert.ErrorIs(t, m.SetPriority(ctx, "x", 1), ErrPluginNotFound)
	assert.ErrorIs(t, m.Unregister(ctx, "x"), ErrPluginNotFound)
	_, err := m.Get("x")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestManager_ApplyConfig_ReconfiguresInitialized(t *testing.T) {
	m := NewManager()
	p := &configurablePlugin{mockPlugin: newMockPlugin("cfg", "1.0")}
	require.NoError(t, m.Register(p))
	require.NoError(t, m.InitializeAll(context.Background()))

	require.NoError(t, m.ApplyConfig(map[string]ConfigEntry{
		"cfg":     {Settings: map[string]any{"max_size": 10}},
		"unknown": {Settings: map[string]any{"x": 1}},
	}))
	assert.Equal(t, 10, p.settings["max_size"])

	p.err = errors.New("rejected")
	err := m.ApplyConfig(map[string]ConfigEntry{"cfg": {Settings: map[string]any{"max_size": -1}}})
	assert.ErrorContains(t, err, "rejected")
}

func TestManager_ApplyDefaults(t *testing.T) {
	m := NewManager()
	p := newMockPlugin("params", "1.0")
	p.ext = map[types.RecordKind]types.Schema{
		types.KindAgentConfig: {
			"top_k":          {Type: types.FieldInt, Default: 40},
			"repeat_penalty": {Type: types.FieldFloat, Default: 1.1},
			"seed":           {Type: types.FieldInt},
		},
	}
	require.NoError(t, m.Register(p))

	cfg := types.NewAgentConfig("a", "r", "s")
	cfg.Set("top_k", 50)
	m.ApplyDefaults(cfg)

	k, _ := cfg.Ext().Int("top_k")
	assert.Equal(t, 50, k, "present fields keep their value")
	rp, _ := cfg.Ext().Float("repeat_penalty")
	assert.Equal(t, 1.1, rp)
	assert.False(t, cfg.Ext().Has("seed"), "fields without default stay absent")
	assert.Equal(t, 0.7, cfg.Temperature)
}

func TestManager_Validate(t *testing.T) {
	m := NewManager()
	p := newMockPlugin("params", "1.0")
	p.ext = map[types.RecordKind]types.Schema{
		types.KindGenerateRequest: {
			"top_k": {Type: types.FieldInt},
			"seed":  {Type: types.FieldInt},
		},
	}
	require.NoError(t, m.Register(p))

	req := &types.GenerateRequest{}
	req.Set("top_k", 40.0)
	req.Set("unknown", "kept")
	assert.NoError(t, m.Validate(req))

	req.Set("seed", "not a number")
	err := m.Validate(req)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "GenerateRequest.seed")
	assert.Contains(t, err.Error(), "plugin params")
}
