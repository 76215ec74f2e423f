package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/aicli/types"
)

const traceManifest = `
name: tracer
version: 1.2.0
description: Tags requests for tracing
priority: 50
extensions:
  GenerateRequest:
    trace:
      type: list
      description: Tags collected along the pipeline
    origin:
      type: string
      default: cli
hooks:
  generate_request:
    defaults:
      origin: manifest
    append:
      trace: tracer
`

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tracer.yaml", traceManifest)
	writeFile(t, dir, "seen/plugin.json", `{"name": "seen", "hooks": {"chat_message": {"set": {"seen": true}}}}`)
	writeFile(t, dir, "_disabled.yaml", "name: hidden\n")
	writeFile(t, dir, ".hidden.json", `{"name": "dot"}`)
	writeFile(t, dir, "README.md", "# not a manifest")
	writeFile(t, dir, "empty/notes.txt", "nothing here")
	writeFile(t, dir, "broken.yaml", "name: [unterminated\n")
	writeFile(t, dir, "nameless.json", `{"version": "1.0.0"}`)
	writeFile(t, dir, "badhook.yaml", "name: bad\nhooks:\n  on_startup: {}\n")

	manifests, err := ScanDirectory(dir)
	require.Error(t, err, "malformed manifests are reported")
	assert.Contains(t, err.Error(), "broken.yaml")
	assert.Contains(t, err.Error(), "name is required")
	assert.ErrorIs(t, err, ErrUnknownHook)

	require.Len(t, manifests, 2)
	byName := map[string]*Manifest{}
	for _, m := range manifests {
		byName[m.Name] = m
	}
	require.Contains(t, byName, "tracer")
	require.Contains(t, byName, "seen")
	assert.Equal(t, "1.2.0", byName["tracer"].Version)
	assert.Equal(t, "0.0.0", byName["seen"].Version)
	assert.Equal(t, 50, byName["tracer"].Config().Priority)
}

func TestScanDirectory_Missing(t *testing.T) {
	manifests, err := ScanDirectory(t.TempDir() + "/absent")
	assert.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestManifest_RejectsBaseFieldEdits(t *testing.T) {
	m := &Manifest{
		Name:  "rewriter",
		Hooks: map[HookName]HookAction{HookGenerateRequest: {Set: map[string]any{"prompt": "x"}}},
	}
	assert.ErrorContains(t, m.Validate(), `edits base field "prompt"`)
}

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tracer.yaml", traceManifest)
	writeFile(t, dir, "seen/plugin.json", `{"name": "seen", "priority": 5, "hooks": {"chat_message": {"set": {"seen": true}}}}`)
	writeFile(t, dir, "broken.json", "{")

	m := NewManager(WithDiscoveryDir(dir))
	require.NoError(t, m.Register(newRequestPlugin("code", appendTrace("code")), withPriority(100)))

	names, err := m.Discover(context.Background())
	assert.Error(t, err)
	assert.ElementsMatch(t, []string{"tracer", "seen"}, names)

	info, err := m.Registry().Info("tracer")
	require.NoError(t, err)
	assert.Equal(t, 50, info.Config.Priority)
	assert.Equal(t, "Tags requests for tracing", info.Descriptor.Description)
	assert.Equal(t, []HookName{HookGenerateRequest}, info.Descriptor.Hooks, "only declared hooks are chained")

	rs := m.ResolveSchema(types.KindGenerateRequest)
	assert.Equal(t, "tracer", rs.Sources["trace"])

	req, err := m.ProcessGenerateRequest(context.Background(), &types.GenerateRequest{})
	require.NoError(t, err)
	trace, _ := req.Ext().List("trace")
	assert.Equal(t, []any{"code", "tracer"}, trace)
	assert.Equal(t, "manifest", req.Ext().String("origin"))

	msg, err := m.ProcessChatMessage(context.Background(), types.NewChatMessage(types.RoleUser, "hi"))
	require.NoError(t, err)
	seen, _ := msg.Ext().Bool("seen")
	assert.True(t, seen)

	_, err = m.Discover(context.Background())
	assert.ErrorIs(t, err, ErrPluginAlreadyRegistered, "rediscovery does not replace registered plugins")
}

func TestManager_Discover_NoDirectory(t *testing.T) {
	names, err := NewManager().Discover(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, names)
}

func TestDeclarativePlugin_Defaults(t *testing.T) {
	m := NewManager()
	mf := &Manifest{
		Name: "d",
		Hooks: map[HookName]HookAction{
			HookAgentInit: {Defaults: map[string]any{"top_k": 40}},
		},
	}
	require.NoError(t, mf.Validate())
	require.NoError(t, m.Register(NewDeclarativePlugin(mf)))

	cfg := types.NewAgentConfig("a", "r", "s")
	cfg.Set("top_k", 10)
	out, err := m.ProcessAgentConfig(context.Background(), cfg)
	require.NoError(t, err)
	k, _ := out.Ext().Int("top_k")
	assert.Equal(t, 10, k)

	out, err = m.ProcessAgentConfig(context.Background(), types.NewAgentConfig("b", "r", "s"))
	require.NoError(t, err)
	k, _ = out.Ext().Int("top_k")
	assert.Equal(t, 40, k)

	assert.Empty(t, m.Registry().Chain(HookGenerateResponse))
}
