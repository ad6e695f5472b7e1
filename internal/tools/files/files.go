// Package files implements the read_file/write_file/glob tools, running
// every path through the security path guard before touching disk. No
// edit_file tool is provided.
package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/security"
)

// Resolver confines tool filesystem access to root, rejecting any path that
// escapes it or matches the path guard's denylist.
type Resolver struct {
	Root  string
	Guard *security.PathGuard
}

// NewResolver returns a resolver rooted at root.
func NewResolver(root string) *Resolver {
	if root == "" {
		root = "."
	}
	return &Resolver{Root: root, Guard: security.NewPathGuard()}
}

// Resolve returns the absolute path for a tool-supplied path, rejecting
// workspace escapes and anything the path guard denies.
func (r *Resolver) Resolve(path string) (string, error) {
	if path == "" {
		path = "."
	}

	abs, err := filepath.Abs(filepath.Join(r.Root, path))
	if err != nil {
		return "", err
	}

	rootAbs, err := filepath.Abs(r.Root)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("files: path %q escapes workspace", path)
	}

	if err := r.Guard.Check(abs); err != nil {
		return "", fmt.Errorf("files: %w: %s", err, abs)
	}

	return abs, nil
}

// ReadFileTool implements the read_file tool.
type ReadFileTool struct{ Resolver *Resolver }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file in the workspace." }
func (t *ReadFileTool) Risk() agent.RiskLevel { return agent.RiskLow }
func (t *ReadFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
}

func (t *ReadFileTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct{ Path string }
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	path, err := t.Resolver.Resolve(in.Path)
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: string(data)}, nil
}

// WriteFileTool implements the write_file tool.
type WriteFileTool struct{ Resolver *Resolver }

func (t *WriteFileTool) Name() string         { return "write_file" }
func (t *WriteFileTool) Description() string  { return "Write content to a file in the workspace, creating parent directories as needed." }
func (t *WriteFileTool) Risk() agent.RiskLevel { return agent.RiskMedium }
func (t *WriteFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`)
}

func (t *WriteFileTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct{ Path, Content string }
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	path, err := t.Resolver.Resolve(in.Path)
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path)}, nil
}

// GlobTool implements the glob tool.
type GlobTool struct{ Resolver *Resolver }

func (t *GlobTool) Name() string         { return "glob" }
func (t *GlobTool) Description() string  { return "List files in the workspace matching a glob pattern." }
func (t *GlobTool) Risk() agent.RiskLevel { return agent.RiskLow }
func (t *GlobTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"}},"required":["pattern"]}`)
}

func (t *GlobTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct{ Pattern string }
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	root, err := t.Resolver.Resolve(".")
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	matches, err := filepath.Glob(filepath.Join(root, in.Pattern))
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	out, err := json.Marshal(matches)
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: string(out)}, nil
}
