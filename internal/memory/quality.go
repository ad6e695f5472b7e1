// Package memory implements the quality gate and explicit-save-command
// recognition the agent loop applies to inbound chat text, so an explicit
// "remember: ..." message that clears the gate is captured even in a turn
// where the model never calls write_memory itself. The write_memory tool
// does not apply this gate.
package memory

import (
	"strings"
	"unicode"
)

// NormalizeMemoryContent collapses whitespace and trims input, truncating
// to at most maxChars runes. Returns ok=false for input that normalizes to
// empty.
func NormalizeMemoryContent(input string, maxChars int) (string, bool) {
	fields := strings.Fields(input)
	content := strings.TrimSpace(strings.Join(fields, " "))
	if content == "" {
		return "", false
	}
	runes := []rune(content)
	if len(runes) > maxChars {
		content = string(runes[:maxChars])
	}
	return content, true
}

var lowSignalPhrases = map[string]bool{
	"hi": true, "hello": true, "thanks": true, "thank you": true,
	"ok": true, "okay": true, "lol": true, "haha": true,
}

// QualityReason reports why content fails the memory quality bar, or ""
// if it passes.
func QualityReason(content string) string {
	trimmed := strings.TrimSpace(strings.ToLower(content))
	if len(trimmed) < 8 {
		return "too short"
	}
	if lowSignalPhrases[trimmed] {
		return "small talk"
	}
	if strings.Contains(trimmed, "maybe") || strings.Contains(trimmed, "i think") ||
		strings.Contains(trimmed, "not sure") || strings.Contains(trimmed, "guess") {
		return "uncertain statement"
	}
	if !strings.ContainsFunc(trimmed, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return "no signal"
	}
	return ""
}

// QualityOK reports whether content clears the memory quality bar.
func QualityOK(content string) bool {
	return QualityReason(content) == ""
}

// strongPrefixes are high-confidence memory-command prefixes: a message
// starting with one of these is always saved, as opposed to a weak
// "remember <anything>" which is left for the model to act on via
// write_memory if it judges the content worth keeping.
var strongPrefixes = []string{
	"remember this:",
	"remember this ",
	"remember that ",
	"remember:",
	"memo:",
}

var zhPrefixes = []string{"记住：", "记住:", "请记住", "记一下：", "记一下:"}

const explicitCommandMaxChars = 180

// ExtractExplicitMemoryCommand recognizes an explicit save-this-fact prefix
// in text and returns the normalized content to save, or ok=false if text
// carries no such prefix.
func ExtractExplicitMemoryCommand(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", false
	}
	lower := strings.ToLower(t)

	for _, p := range strongPrefixes {
		if strings.HasPrefix(lower, p) {
			raw := strings.TrimSpace(t[len(p):])
			return NormalizeMemoryContent(raw, explicitCommandMaxChars)
		}
	}

	for _, p := range zhPrefixes {
		if strings.HasPrefix(t, p) {
			raw := strings.TrimSpace(t[len(p):])
			return NormalizeMemoryContent(raw, explicitCommandMaxChars)
		}
	}

	return "", false
}

// TopicKey buckets content into a coarse topic for near-duplicate detection:
// a handful of recognized topics get a fixed key, everything else keys off
// its first few alphanumeric words.
func TopicKey(content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "port") && (strings.Contains(lower, "db") || strings.Contains(lower, "database")):
		return "db_port"
	case strings.Contains(lower, "deadline") || strings.Contains(lower, "due date"):
		return "deadline"
	case strings.Contains(lower, "timezone") || strings.Contains(lower, "time zone"):
		return "timezone"
	case strings.Contains(lower, "server ip") || strings.Contains(lower, "ip address"):
		return "server_ip"
	}

	var words []string
	for _, w := range strings.Fields(lower) {
		var b strings.Builder
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			words = append(words, b.String())
		}
		if len(words) == 4 {
			break
		}
	}
	return strings.Join(words, "_")
}
