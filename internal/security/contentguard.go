package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity grades a content-scan finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Finding is one matched rule against a piece of fetched web content.
type Finding struct {
	RuleID   string
	Severity Severity
	Excerpt  string
}

type contentRule struct {
	id       string
	severity Severity
	pattern  *regexp.Regexp
}

// injectionRules flag instruction-like text commonly used to hijack an
// agent that is summarizing or quoting fetched web content.
var injectionRules = []contentRule{
	{"ignore-instructions", SeverityCritical, regexp.MustCompile(`(?i)ignore ((all|previous|the above) )+instructions`)},
	{"system-prompt-override", SeverityCritical, regexp.MustCompile(`(?i)you are now|new system prompt|act as if you`)},
	{"exfil-request", SeverityWarn, regexp.MustCompile(`(?i)send (this|the) (api key|password|token|secret) to`)},
	{"hidden-directive", SeverityWarn, regexp.MustCompile(`(?i)\[system\]|<\|system\|>`)},
}

// ContentGuard scans text pulled in from outside the conversation (web
// fetches, tool output) for prompt-injection-style directives before it is
// allowed back into the LLM's context.
type ContentGuard struct {
	rules []contentRule
}

// NewContentGuard constructs a guard with the built-in rule set.
func NewContentGuard() *ContentGuard {
	return &ContentGuard{rules: injectionRules}
}

// Scan returns the first match of each rule found in text and leaves what to
// do about it to the caller; Sanitize is the variant that strips matched
// lines. No tool or channel adapter in this module calls either.
func (g *ContentGuard) Scan(text string) []Finding {
	var findings []Finding
	for _, rule := range g.rules {
		loc := rule.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		excerpt := text[loc[0]:loc[1]]
		findings = append(findings, Finding{RuleID: rule.id, Severity: rule.severity, Excerpt: excerpt})
	}
	return findings
}

// Sanitize removes lines matched by any rule and returns the cleaned text
// plus the findings that triggered removal.
func (g *ContentGuard) Sanitize(text string) (string, []Finding) {
	var findings []Finding
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		matched := false
		for _, rule := range g.rules {
			if rule.pattern.MatchString(line) {
				findings = append(findings, Finding{RuleID: rule.id, Severity: rule.severity, Excerpt: strings.TrimSpace(line)})
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), findings
}

// Summary renders findings one line per finding, in the order given
// (callers sort if needed — this just formats).
func Summary(findings []Finding) string {
	if len(findings) == 0 {
		return "no findings"
	}
	var b strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&b, "[%s] %s: %q\n", f.Severity, f.RuleID, f.Excerpt)
	}
	return b.String()
}
