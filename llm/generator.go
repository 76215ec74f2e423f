package llm

import (
	"context"

	"github.com/BaSui01/aicli/types"
)

// Generator is the model-serving client: it sends generation and chat
// requests to a local model server.
type Generator interface {
	// Generate performs a single-shot generation.
	Generate(ctx context.Context, req *types.GenerateRequest) (*types.GenerateResponse, error)
	// Chat sends a conversation and returns the assistant reply.
	Chat(ctx context.Context, req *ChatRequest) (*types.ChatMessage, error)
}

// ChatRequest is a conversational exchange sent to the model server.
type ChatRequest struct {
	Model    string               `json:"model"`
	Messages []*types.ChatMessage `json:"messages"`
	Options  map[string]any       `json:"options,omitempty"`
}

// GeneratorFunc adapts a Handler to a Generator without chat support.
type GeneratorFunc Handler

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req *types.GenerateRequest) (*types.GenerateResponse, error) {
	return f(ctx, req)
}

// Chat implements Generator. It always fails.
func (f GeneratorFunc) Chat(context.Context, *ChatRequest) (*types.ChatMessage, error) {
	return nil, types.NewError(types.ErrInvalidRequest, "chat is not supported by this generator")
}
