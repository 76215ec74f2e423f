package builtin

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/aicli/agent/plugins"
	"github.com/BaSui01/aicli/types"
)

// LogIDField is the record field correlating a request with its response.
const LogIDField = "log_id"

// LoggingPlugin tags every generation request with a log_id and logs
// requests and responses. With the log_file setting it also appends JSON
// lines to that file until Shutdown.
type LoggingPlugin struct {
	base *zap.Logger

	mu      sync.RWMutex
	logFile string
	file    *os.File
	logger  *zap.Logger
}

var (
	_ plugins.Plugin               = (*LoggingPlugin)(nil)
	_ plugins.SchemaExtender       = (*LoggingPlugin)(nil)
	_ plugins.Configurable         = (*LoggingPlugin)(nil)
	_ plugins.GenerateRequestHook  = (*LoggingPlugin)(nil)
	_ plugins.GenerateResponseHook = (*LoggingPlugin)(nil)
)

// NewLoggingPlugin creates the logging plugin.
func NewLoggingPlugin(logger *zap.Logger) *LoggingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := logger.With(zap.String("plugin", LoggingName))
	return &LoggingPlugin{base: base, logger: base}
}

func (p *LoggingPlugin) Name() string    { return LoggingName }
func (p *LoggingPlugin) Version() string { return "1.0.0" }
func (p *LoggingPlugin) Description() string {
	return "Logs generation requests and responses with a correlation id"
}

// SchemaExtensions implements plugins.SchemaExtender.
func (p *LoggingPlugin) SchemaExtensions() map[types.RecordKind]types.Schema {
	field := types.FieldSpec{Type: types.FieldString, Description: "Request correlation id"}
	return map[types.RecordKind]types.Schema{
		types.KindGenerateRequest:  {LogIDField: field},
		types.KindGenerateResponse: {LogIDField: field},
	}
}

// Configure reads the log_file setting.
func (p *LoggingPlugin) Configure(settings map[string]any) error {
	v, ok := settings["log_file"]
	if !ok {
		return nil
	}
	path, ok := v.(string)
	if !ok {
		return fmt.Errorf("log_file: expected string, got %T", v)
	}
	p.mu.Lock()
	p.logFile = path
	p.mu.Unlock()
	return nil
}

// Init opens the log file when one is configured.
func (p *LoggingPlugin) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.logFile == "" || p.file != nil {
		return nil
	}
	f, err := os.OpenFile(p.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(f),
		zapcore.InfoLevel,
	)
	p.file = f
	p.logger = zap.New(zapcore.NewTee(p.base.Core(), fileCore)).With(zap.String("plugin", LoggingName))
	return nil
}

// Shutdown closes the log file.
func (p *LoggingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return nil
	}
	_ = p.logger.Sync()
	err := p.file.Close()
	p.file = nil
	p.logger = p.base
	return err
}

// OnGenerateRequest assigns a log_id when the request has none and logs it.
func (p *LoggingPlugin) OnGenerateRequest(ctx context.Context, req *types.GenerateRequest) (*types.GenerateRequest, error) {
	if req.Ext().String(LogIDField) == "" {
		req.Set(LogIDField, NewLogID())
	}
	p.current().Info("generate request", append(contextFields(ctx),
		zap.String(LogIDField, req.Ext().String(LogIDField)),
		zap.String("model", req.Model),
		zap.Int("prompt_length", len(req.Prompt)),
		zap.Bool("stream", req.Stream),
	)...)
	return req, nil
}

// OnGenerateResponse logs the response under the request's log_id.
func (p *LoggingPlugin) OnGenerateResponse(ctx context.Context, resp *types.GenerateResponse) (*types.GenerateResponse, error) {
	p.current().Info("generate response", append(contextFields(ctx),
		zap.String(LogIDField, resp.Ext().String(LogIDField)),
		zap.String("model", resp.Model),
		zap.Int("response_length", len(resp.Response)),
		zap.Bool("done", resp.Done),
		zap.Int("eval_count", resp.EvalCount),
	)...)
	return resp, nil
}

// contextFields returns the trace and session ids carried by ctx.
func contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id, ok := types.TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", id))
	}
	if id, ok := types.SessionID(ctx); ok {
		fields = append(fields, zap.String("session_id", id))
	}
	return fields
}

func (p *LoggingPlugin) current() *zap.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// NewLogID returns a fresh correlation id of the form req_<uuid>.
func NewLogID() string {
	return "req_" + uuid.NewString()
}
