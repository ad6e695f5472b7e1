package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/microclaw/microclaw/internal/memory"
	"github.com/microclaw/microclaw/internal/metrics"
	"github.com/microclaw/microclaw/internal/models"
)

// Phase tracks where a turn is in the Init -> Stream -> ExecuteTools ->
// Continue/Complete state machine.
type Phase string

const (
	PhaseInit         Phase = "init"
	PhaseStream       Phase = "stream"
	PhaseExecuteTools Phase = "execute_tools"
	PhaseContinue     Phase = "continue"
	PhaseComplete     Phase = "complete"
)

// ErrMaxIterations is returned (wrapped in an "error" event) when a
// turn exhausts its iteration budget without the model returning a final
// answer.
var ErrMaxIterations = fmt.Errorf("agent: max iterations exceeded")

// LoopConfig bounds one turn's cost and behavior.
type LoopConfig struct {
	MaxIterations   int
	MaxToolCalls    int
	MaxWallTime     time.Duration
	MaxTokens       int
	DefaultModel    string
	DefaultSystem   string
	RequireApproval []string // tool names needing the approval gate regardless of Risk()
	ControlChatIDs  []string // chat ids that may act on any chat's resources and trigger the high-risk gate outside web
}

// DefaultLoopConfig sets MaxIterations to 25 to give multi-step tool chains
// more room before the loop gives up.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: 25,
		MaxToolCalls:  50,
		MaxWallTime:   5 * time.Minute,
		MaxTokens:     4096,
	}
}

// MessageStore is the minimal persistence contract the loop needs: append
// to and read back a chat's transcript. internal/sessions implements this.
type MessageStore interface {
	AppendMessage(ctx context.Context, sessionID string, msg models.Message) error
	History(ctx context.Context, sessionID string) ([]models.Message, error)
}

// AgenticLoop drives one turn at a time: it is safe to share across
// sessions since all mutable per-turn state lives in loopState, but callers
// must hold the session lock (SessionLocker) for the duration of a Run.
type AgenticLoop struct {
	provider  LLMProvider
	registry  *ToolRegistry
	executor  *Executor
	approval  *ApprovalGate
	store     MessageStore
	config    LoopConfig
	collector *metrics.Collector
	memories  MemoryWriter
}

// MemoryWriter is the slice of storage.MemoryStore the loop needs to
// auto-save an explicit "remember: ..." message ahead of any tool call.
type MemoryWriter interface {
	SaveMemory(ctx context.Context, mem models.StructuredMemory) error
}

// NewAgenticLoop wires a loop from its collaborators.
func NewAgenticLoop(provider LLMProvider, registry *ToolRegistry, executor *Executor, approval *ApprovalGate, store MessageStore, cfg LoopConfig) *AgenticLoop {
	if cfg.MaxIterations <= 0 {
		cfg = DefaultLoopConfig()
	}
	return &AgenticLoop{provider: provider, registry: registry, executor: executor, approval: approval, store: store, config: cfg}
}

// SetMemoryWriter attaches the structured memory store the loop uses to
// auto-save explicit "remember: ..." commands. Without one, explicit-save
// commands are left to the model to act on via the write_memory tool.
func (l *AgenticLoop) SetMemoryWriter(w MemoryWriter) {
	l.memories = w
}

// SetCollector attaches a Prometheus collector recording LLM request
// latency and outcome per model.
func (l *AgenticLoop) SetCollector(c *metrics.Collector) {
	l.collector = c
}

func (l *AgenticLoop) recordLLM(dur time.Duration, status string) {
	if l.collector == nil {
		return
	}
	model := l.config.DefaultModel
	l.collector.LLMRequestTotal.WithLabelValues(model, status).Inc()
	l.collector.LLMRequestDuration.WithLabelValues(model).Observe(dur.Seconds())
}

type loopState struct {
	phase         Phase
	iteration     int
	totalToolCall int
	messages      []CompletionMessage
	accumulated   string
}

// Run drives one turn for sessionID given the newly-arrived inbound text,
// emitting Events on the returned channel until the turn completes or fails.
// The channel is always closed before Run's goroutine exits.
func (l *AgenticLoop) Run(ctx context.Context, sessionID, channel, chatID, inboundText string) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		runCtx := ctx
		var cancel context.CancelFunc
		if l.config.MaxWallTime > 0 {
			runCtx, cancel = context.WithTimeout(ctx, l.config.MaxWallTime)
			defer cancel()
		}

		state, err := l.initializeState(runCtx, sessionID, inboundText)
		if err != nil {
			out <- errorEvent(err)
			return
		}

		if err := l.persistInbound(runCtx, sessionID, inboundText); err != nil {
			out <- errorEvent(err)
			return
		}

		l.autoSaveExplicitMemory(runCtx, chatID, inboundText)

		for state.iteration < l.config.MaxIterations {
			out <- statusEvent(string(PhaseStream))
			state.phase = PhaseStream

			llmStart := time.Now()
			chunks, err := l.provider.Complete(runCtx, CompletionRequest{
				Model:     l.config.DefaultModel,
				System:    l.config.DefaultSystem,
				Messages:  state.messages,
				Tools:     l.registry.AsLLMTools(nil),
				MaxTokens: l.config.MaxTokens,
			})
			if err != nil {
				l.recordLLM(time.Since(llmStart), "error")
				out <- errorEvent(err)
				return
			}

			var text string
			var toolCalls []models.ToolCall
			for chunk := range chunks {
				switch chunk.Type {
				case ChunkText:
					text += chunk.Text
					out <- deltaEvent(chunk.Text)
				case ChunkToolCall:
					if chunk.ToolCall != nil {
						toolCalls = append(toolCalls, *chunk.ToolCall)
					}
				case ChunkError:
					l.recordLLM(time.Since(llmStart), "error")
					out <- errorEvent(chunk.Err)
					return
				}
			}
			l.recordLLM(time.Since(llmStart), "ok")

			state.accumulated += text
			state.messages = append(state.messages, CompletionMessage{Role: models.RoleAssistant, Content: text, ToolCalls: toolCalls})

			if err := l.persistAssistant(runCtx, sessionID, text, toolCalls); err != nil {
				out <- errorEvent(err)
				return
			}

			if len(toolCalls) == 0 {
				out <- doneEvent(state.accumulated)
				return
			}

			state.phase = PhaseExecuteTools
			out <- statusEvent(string(PhaseExecuteTools))

			toolResults, err := l.executeTools(runCtx, channel, chatID, toolCalls, out)
			if err != nil {
				out <- errorEvent(err)
				return
			}

			state.totalToolCall += len(toolCalls)
			if l.config.MaxToolCalls > 0 && state.totalToolCall > l.config.MaxToolCalls {
				out <- errorEvent(fmt.Errorf("agent: max tool calls exceeded"))
				return
			}

			if err := l.persistToolResults(runCtx, sessionID, toolResults); err != nil {
				out <- errorEvent(err)
				return
			}

			state.messages = append(state.messages, CompletionMessage{Role: models.RoleTool, ToolResults: toolResults})
			state.phase = PhaseContinue
			state.iteration++
		}

		out <- errorEvent(ErrMaxIterations)
	}()

	return out
}

func (l *AgenticLoop) initializeState(ctx context.Context, sessionID, inboundText string) (*loopState, error) {
	history, err := l.store.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages := make([]CompletionMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, CompletionMessage{Role: m.Role, Content: m.Content, ToolCalls: m.ToolCalls, ToolResults: m.ToolResults})
	}
	messages = append(messages, CompletionMessage{Role: models.RoleUser, Content: inboundText})

	return &loopState{phase: PhaseInit, messages: messages}, nil
}

func (l *AgenticLoop) persistInbound(ctx context.Context, sessionID, text string) error {
	return l.store.AppendMessage(ctx, sessionID, models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	})
}

func (l *AgenticLoop) persistAssistant(ctx context.Context, sessionID, text string, calls []models.ToolCall) error {
	return l.store.AppendMessage(ctx, sessionID, models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   text,
		ToolCalls: calls,
		CreatedAt: time.Now(),
	})
}

// autoSaveExplicitMemory recognizes an explicit "remember: ..." style
// command in inboundText and saves it as a chat-scoped KNOWLEDGE memory,
// bypassing the normal write_memory tool call entirely. A weak "remember
// <anything>" without a strong prefix is left for the model to judge and
// save itself via the tool. Errors are swallowed: a failed auto-save must
// never derail the turn.
func (l *AgenticLoop) autoSaveExplicitMemory(ctx context.Context, chatID, inboundText string) {
	if l.memories == nil {
		return
	}
	content, ok := memory.ExtractExplicitMemoryCommand(inboundText)
	if !ok || !memory.QualityOK(content) {
		return
	}
	chat := chatID
	_ = l.memories.SaveMemory(ctx, models.StructuredMemory{
		ID:        uuid.NewString(),
		ChatID:    &chat,
		Category:  "KNOWLEDGE",
		Content:   content,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
}

func (l *AgenticLoop) persistToolResults(ctx context.Context, sessionID string, results []models.ToolResult) error {
	return l.store.AppendMessage(ctx, sessionID, models.Message{
		ID:          uuid.NewString(),
		Role:        models.RoleTool,
		ToolResults: results,
		CreatedAt:   time.Now(),
	})
}

// executeTools injects the calling chat's auth context into every call,
// rejects unknown tool names outright, resolves approval for risk-tagged
// calls, batches the rest through the Executor, and folds results back
// preserving call order.
//
// The high-risk approval gate only applies when the caller is the web
// console or a configured control chat — every other high-risk call from
// an ordinary chat runs straight through, since there is no operator
// session to confirm it against.
func (l *AgenticLoop) executeTools(ctx context.Context, channel, chatID string, calls []models.ToolCall, out chan<- Event) ([]models.ToolResult, error) {
	auth := ToolAuthContext{CallerChannel: channel, CallerChatID: chatID, ControlChatIDs: l.config.ControlChatIDs}
	isControlChat := auth.IsControlChat()

	execCalls := make([]Call, 0, len(calls))
	preResolved := make(map[string]models.ToolResult)

	for _, tc := range calls {
		out <- toolStartEvent(tc.ID, tc.Name)

		tool, ok := l.registry.Get(tc.Name)
		if !ok {
			msg := fmt.Sprintf("unknown tool: %s", tc.Name)
			r := models.ToolResult{ToolCallID: tc.ID, Content: msg, IsError: true, ErrorType: "unknown_tool", StatusCode: 1, Bytes: len(msg)}
			preResolved[tc.ID] = r
			out <- toolResultEvent(tc.ID, tc.Name, r)
			continue
		}

		gated := (tool.Risk() == RiskHigh && (channel == "web" || isControlChat)) || containsString(l.config.RequireApproval, tc.Name)
		if gated {
			outcome := l.approval.Check(channel, chatID, tc.Name, tool.Risk())
			if !outcome.Allowed {
				r := models.ToolResult{ToolCallID: tc.ID, Content: outcome.Message, IsError: true, ErrorType: outcome.ErrorType, StatusCode: 1, Bytes: len(outcome.Message)}
				preResolved[tc.ID] = r
				out <- toolResultEvent(tc.ID, tc.Name, r)
				continue
			}
		}

		execCalls = append(execCalls, Call{ID: tc.ID, Name: tc.Name, Params: InjectAuthContext(tc.Input, auth)})
	}

	execResults := l.executor.ExecuteAll(ctx, execCalls)

	results := make([]models.ToolResult, 0, len(calls))
	for _, tc := range calls {
		if r, ok := preResolved[tc.ID]; ok {
			results = append(results, r)
			continue
		}
		r := toModelResult(tc.ID, execResults)
		results = append(results, r)
		out <- toolResultEvent(tc.ID, tc.Name, r)
	}

	return results, nil
}

func toModelResult(callID string, execResults []ExecutionResult) models.ToolResult {
	for _, r := range execResults {
		if r.CallID != callID {
			continue
		}
		durationMs := r.Duration.Milliseconds()

		if r.Error != nil {
			content := r.Error.Error()
			return models.ToolResult{ToolCallID: callID, Content: content, IsError: true, ErrorType: "tool_error", StatusCode: 1, Bytes: len(content), DurationMs: durationMs}
		}
		if r.Result == nil {
			return models.ToolResult{ToolCallID: callID, DurationMs: durationMs}
		}

		statusCode := r.Result.StatusCode
		errType := r.Result.ErrorType
		if r.Result.IsError {
			if statusCode == 0 {
				statusCode = 1
			}
			if errType == "" {
				errType = "tool_error"
			}
		}
		return models.ToolResult{
			ToolCallID: callID,
			Content:    r.Result.Content,
			IsError:    r.Result.IsError,
			ErrorType:  errType,
			StatusCode: statusCode,
			Bytes:      len(r.Result.Content),
			DurationMs: durationMs,
		}
	}
	return models.ToolResult{ToolCallID: callID, Content: "no result", IsError: true, ErrorType: "tool_error", StatusCode: 1}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
