package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/aicli/types"
)

func TestLoggingPlugin_AssignsLogID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLoggingPlugin(zap.New(core))
	ctx := context.Background()

	req := &types.GenerateRequest{Model: "llama3.2", Prompt: "hi"}
	out, err := p.OnGenerateRequest(ctx, req)
	require.NoError(t, err)

	id := out.Ext().String(LogIDField)
	assert.True(t, strings.HasPrefix(id, "req_"), id)

	entries := logs.FilterMessage("generate request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ContextMap()[LogIDField])
	assert.Equal(t, LoggingName, entries[0].ContextMap()["plugin"])
}

func TestLoggingPlugin_ContextIDs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLoggingPlugin(zap.New(core))
	ctx := types.WithSessionID(types.WithTraceID(context.Background(), "trace-1"), "chat-9")

	_, err := p.OnGenerateRequest(ctx, &types.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)

	fields := logs.FilterMessage("generate request").All()[0].ContextMap()
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "chat-9", fields["session_id"])
}

func TestLoggingPlugin_KeepsExistingLogID(t *testing.T) {
	p := NewLoggingPlugin(nil)
	req := &types.GenerateRequest{}
	req.Set(LogIDField, "req_fixed")

	out, err := p.OnGenerateRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "req_fixed", out.Ext().String(LogIDField))
}

func TestLoggingPlugin_LogsResponse(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLoggingPlugin(zap.New(core))

	resp := &types.GenerateResponse{Model: "m", Response: "hello", Done: true}
	resp.Set(LogIDField, "req_1")
	_, err := p.OnGenerateResponse(context.Background(), resp)
	require.NoError(t, err)

	entries := logs.FilterMessage("generate response").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req_1", entries[0].ContextMap()[LogIDField])
	assert.EqualValues(t, 5, entries[0].ContextMap()["response_length"])
}

func TestLoggingPlugin_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.log")
	p := NewLoggingPlugin(nil)
	ctx := context.Background()

	require.NoError(t, p.Configure(map[string]any{"log_file": path}))
	require.NoError(t, p.Init(ctx))

	_, err := p.OnGenerateRequest(ctx, &types.GenerateRequest{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(ctx))
	require.NoError(t, p.Shutdown(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"generate request"`)
	assert.Contains(t, string(data), `"log_id":"req_`)
}

func TestLoggingPlugin_ConfigureRejectsBadLogFile(t *testing.T) {
	p := NewLoggingPlugin(nil)
	assert.Error(t, p.Configure(map[string]any{"log_file": 42}))
}

func TestLoggingPlugin_InitFailsOnUnwritablePath(t *testing.T) {
	p := NewLoggingPlugin(nil)
	require.NoError(t, p.Configure(map[string]any{"log_file": filepath.Join(t.TempDir(), "missing", "x.log")}))
	assert.Error(t, p.Init(context.Background()))
}
