// Package browser implements the browser tool on top of go-rod/rod.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/microclaw/microclaw/internal/agent"
)

// Pool owns a single lazily-launched headless browser and hands out pages
// per tool call.
type Pool struct {
	mu      sync.Mutex
	browser *rod.Browser
}

// NewPool returns an empty pool; the browser launches lazily on first use.
func NewPool() *Pool { return &Pool{} }

func (p *Pool) acquire() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser != nil {
		return p.browser, nil
	}
	b := rod.New()
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: launch failed: %w", err)
	}
	p.browser = b
	return p.browser, nil
}

// Close tears down the shared browser, if launched.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser == nil {
		return nil
	}
	err := p.browser.Close()
	p.browser = nil
	return err
}

// Tool implements the agent.Tool contract for browser automation.
type Tool struct {
	pool *Pool
	// pages tracks one page per session key so successive calls in a turn
	// keep acting on the same tab.
	mu    sync.Mutex
	pages map[string]*rod.Page
}

// NewTool returns a browser tool backed by pool, keying pages by
// sessionKey so concurrent sessions never share a tab.
func NewTool(pool *Pool) *Tool {
	return &Tool{pool: pool, pages: make(map[string]*rod.Page)}
}

func (t *Tool) Name() string { return "browser" }
func (t *Tool) Description() string {
	return "Automate web browser interactions: navigation, clicking, typing, screenshots, content extraction, and JavaScript execution."
}
func (t *Tool) Risk() agent.RiskLevel { return agent.RiskLow }
func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["navigate", "click", "type", "screenshot", "extract_text", "extract_html", "wait_for_element", "execute_js"]},
			"session_key": {"type": "string"},
			"url": {"type": "string"},
			"selector": {"type": "string"},
			"text": {"type": "string"},
			"script": {"type": "string"},
			"timeout_ms": {"type": "integer"}
		},
		"required": ["action", "session_key"]
	}`)
}

type params struct {
	Action     string `json:"action"`
	SessionKey string `json:"session_key"`
	URL        string `json:"url"`
	Selector   string `json:"selector"`
	Text       string `json:"text"`
	Script     string `json:"script"`
	TimeoutMS  int    `json:"timeout_ms"`
}

func (t *Tool) page(sessionKey string) (*rod.Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pg, ok := t.pages[sessionKey]; ok {
		return pg, nil
	}
	browser, err := t.pool.acquire()
	if err != nil {
		return nil, err
	}
	pg, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	t.pages[sessionKey] = pg
	return pg, nil
}

func errResult(format string, args ...any) (*agent.ToolResult, error) {
	return &agent.ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}, nil
}

func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (*agent.ToolResult, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return errResult("invalid parameters: %v", err)
	}

	pg, err := t.page(p.SessionKey)
	if err != nil {
		return errResult("%v", err)
	}
	pg = pg.Context(ctx)

	switch p.Action {
	case "navigate":
		if p.URL == "" {
			return errResult("url is required for navigate")
		}
		if err := pg.Navigate(p.URL); err != nil {
			return errResult("navigation failed: %v", err)
		}
		if err := pg.WaitLoad(); err != nil {
			return errResult("wait load failed: %v", err)
		}
		return &agent.ToolResult{Content: "navigated to " + p.URL}, nil

	case "click":
		if p.Selector == "" {
			return errResult("selector is required for click")
		}
		el, err := pg.Element(p.Selector)
		if err != nil {
			return errResult("element not found: %v", err)
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return errResult("click failed: %v", err)
		}
		return &agent.ToolResult{Content: "clicked " + p.Selector}, nil

	case "type":
		if p.Selector == "" {
			return errResult("selector is required for type")
		}
		el, err := pg.Element(p.Selector)
		if err != nil {
			return errResult("element not found: %v", err)
		}
		if err := el.Input(p.Text); err != nil {
			return errResult("type failed: %v", err)
		}
		return &agent.ToolResult{Content: "typed into " + p.Selector}, nil

	case "screenshot":
		data, err := pg.Screenshot(true, nil)
		if err != nil {
			return errResult("screenshot failed: %v", err)
		}
		return &agent.ToolResult{
			Content:     fmt.Sprintf("screenshot captured (%d bytes)", len(data)),
			Attachments: []agent.Attachment{{Filename: "screenshot.png", MimeType: "image/png", Data: data}},
		}, nil

	case "extract_text":
		selector := p.Selector
		if selector == "" {
			selector = "body"
		}
		el, err := pg.Element(selector)
		if err != nil {
			return errResult("element not found: %v", err)
		}
		text, err := el.Text()
		if err != nil {
			return errResult("text extraction failed: %v", err)
		}
		return &agent.ToolResult{Content: text}, nil

	case "extract_html":
		if p.Selector == "" {
			html, err := pg.HTML()
			if err != nil {
				return errResult("html extraction failed: %v", err)
			}
			return &agent.ToolResult{Content: html}, nil
		}
		el, err := pg.Element(p.Selector)
		if err != nil {
			return errResult("element not found: %v", err)
		}
		html, err := el.HTML()
		if err != nil {
			return errResult("html extraction failed: %v", err)
		}
		return &agent.ToolResult{Content: html}, nil

	case "wait_for_element":
		if p.Selector == "" {
			return errResult("selector is required for wait_for_element")
		}
		timeout := time.Duration(p.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		waitPage := pg.Timeout(timeout)
		el, err := waitPage.Element(p.Selector)
		if err != nil {
			return errResult("wait for element failed: %v", err)
		}
		if err := el.WaitVisible(); err != nil {
			return errResult("wait for element failed: %v", err)
		}
		return &agent.ToolResult{Content: "element appeared: " + p.Selector}, nil

	case "execute_js":
		if p.Script == "" {
			return errResult("script is required for execute_js")
		}
		res, err := pg.Eval(p.Script)
		if err != nil {
			return errResult("javascript execution failed: %v", err)
		}
		return &agent.ToolResult{Content: fmt.Sprintf("%v", res.Value)}, nil

	default:
		return errResult("unknown action: %s", p.Action)
	}
}
