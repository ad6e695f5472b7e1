package agent

import (
	"unicode/utf8"

	"github.com/microclaw/microclaw/internal/models"
)

// Event is one item emitted by the loop as a turn progresses, the shape the
// run hub (§4.7) converts directly into SSE frames.
type Event struct {
	Type string         // status | tool_start | tool_result | delta | done | error
	Data map[string]any
}

// previewLimit bounds how much of a tool result's content is echoed on the
// tool_result event; the full content still travels in the persisted
// transcript.
const previewLimit = 1024

// preview clips content to previewLimit bytes, backing off to the nearest
// rune boundary so the result never splits a multi-byte character.
func preview(content string) string {
	if len(content) <= previewLimit {
		return content
	}
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}

func statusEvent(phase string) Event {
	return Event{Type: "status", Data: map[string]any{"phase": phase}}
}

func deltaEvent(text string) Event {
	return Event{Type: "delta", Data: map[string]any{"text": text}}
}

func toolStartEvent(callID, name string) Event {
	return Event{Type: "tool_start", Data: map[string]any{"tool_call_id": callID, "name": name}}
}

// toolResultEvent carries the full tool_result stream contract: a preview
// of the output, its size, how long it took, and (for errors) a status code
// and an error_type the client can branch on.
func toolResultEvent(callID, name string, result models.ToolResult) Event {
	data := map[string]any{
		"tool_call_id": callID,
		"name":         name,
		"is_error":     result.IsError,
		"preview":      preview(result.Content),
		"bytes":        result.Bytes,
		"status_code":  result.StatusCode,
	}
	if result.DurationMs > 0 {
		data["duration_ms"] = result.DurationMs
	}
	if result.ErrorType != "" {
		data["error_type"] = result.ErrorType
	}
	return Event{Type: "tool_result", Data: data}
}

func doneEvent(finalText string) Event {
	return Event{Type: "done", Data: map[string]any{"text": finalText}}
}

func errorEvent(err error) Event {
	return Event{Type: "error", Data: map[string]any{"error": err.Error()}}
}
