// Package agent implements the tool registry, the concurrent tool executor,
// the one-shot approval gate, and the per-turn agent loop that interleaves
// LLM calls with tool execution.
package agent

import (
	"context"
	"encoding/json"
)

// RiskLevel classifies a tool for the approval gate. RiskHigh tools called
// from the web channel or a control chat require the identical call to be
// re-issued within the approval window before they execute; from any other
// chat they run immediately. RiskMedium tools carry consequence (writes,
// sends, scheduling) and RiskLow covers every other tool; neither is gated by
// risk, though LoopConfig.RequireApproval can gate any tool by name.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Tool is the contract every built-in tool implements.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Risk() RiskLevel
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of one tool execution, independent of transport
// — the loop converts this into a models.ToolResult when persisting.
// StatusCode, ErrorType are optional; a tool that leaves them zero gets a
// default assigned by the loop based on IsError.
type ToolResult struct {
	Content     string
	IsError     bool
	StatusCode  int
	ErrorType   string
	Attachments []Attachment
}

// Attachment is a binary artifact a tool produced (e.g. a screenshot from
// the browser tool).
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// LLMTool is the JSON-schema-shaped tool definition sent to the model
// provider on each completion request.
type LLMTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}
