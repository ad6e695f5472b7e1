package agent

import (
	"context"

	"github.com/microclaw/microclaw/internal/models"
)

// CompletionMessage is one entry in the transcript sent to the LLM provider
// on each iteration of the loop.
type CompletionMessage struct {
	Role        models.Role
	Content     string
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResult
}

// CompletionRequest is the full request built for one streaming call to the
// provider.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []CompletionMessage
	Tools    []LLMTool
	MaxTokens int
}

// ChunkType discriminates the union type ResponseChunk carries.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkToolCall ChunkType = "tool_call"
	ChunkDone     ChunkType = "done"
	ChunkError    ChunkType = "error"
)

// ResponseChunk is one piece of a streamed completion.
type ResponseChunk struct {
	Type     ChunkType
	Text     string
	ToolCall *models.ToolCall
	Err      error
}

// LLMProvider is the minimal streaming contract the loop depends on. A
// concrete implementation wraps the Anthropic SDK client (see
// internal/agent/providers in the ambient stack); tests use a fake.
type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (<-chan ResponseChunk, error)
}
