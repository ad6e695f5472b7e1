package agent

import (
	"fmt"
	"sort"
	"sync"
)

// MaxToolNameLength and MaxToolParamsSize bound a single tool invocation,
// rejecting pathological requests before they ever reach a Tool's Execute.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20 // 10MiB
)

// ToolRegistry is the process-wide, read-mostly set of tools available to
// the agent loop. Tools register once at startup; lookups happen on every
// turn under a read lock.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the tool registered under name, if any.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name, sorted, for deterministic
// listing in /api/tools and test output.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AsLLMTools renders every registered tool into the provider-facing schema
// shape, sorted by name. A nil allowed list includes every tool; otherwise
// only the named tools are included.
func (r *ToolRegistry) AsLLMTools(allowed []string) []LLMTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allow := func(name string) bool {
		if allowed == nil {
			return true
		}
		for _, a := range allowed {
			if a == name {
				return true
			}
		}
		return false
	}

	out := make([]LLMTool, 0, len(r.tools))
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !allow(name) {
			continue
		}
		t := r.tools[name]
		out = append(out, LLMTool{Name: t.Name(), Description: t.Description(), InputSchema: t.Schema()})
	}
	return out
}

// validateName/validateParamsSize guard against oversized or malformed
// invocations before a tool ever sees them.
func validateName(name string) error {
	if name == "" || len(name) > MaxToolNameLength {
		return fmt.Errorf("agent: invalid tool name length %d", len(name))
	}
	return nil
}

func validateParamsSize(params []byte) error {
	if len(params) > MaxToolParamsSize {
		return fmt.Errorf("agent: tool params too large: %d bytes", len(params))
	}
	return nil
}
