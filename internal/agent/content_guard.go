package agent

import (
	"log/slog"
	"regexp"
)

// Guard actions for content that matches an injection pattern.
const (
	GuardOff  = "off"  // no scanning
	GuardLog  = "log"  // debug-level log
	GuardWarn = "warn" // warning-level log (default)
)

type guardPattern struct {
	name    string
	pattern *regexp.Regexp
}

// ContentGuard scans text entering the conversation from tools (file
// contents, tool errors) for prompt injection patterns. Matches are only
// logged; the content is still handed to the model unchanged.
type ContentGuard struct {
	action   string
	patterns []guardPattern
}

// NewContentGuard creates a guard with the built-in patterns. An unknown
// action falls back to GuardWarn.
func NewContentGuard(action string) *ContentGuard {
	switch action {
	case GuardOff, GuardLog, GuardWarn:
	default:
		action = GuardWarn
	}
	return &ContentGuard{action: action, patterns: defaultGuardPatterns()}
}

// Scan returns the names of matched patterns, nil when nothing matched.
func (g *ContentGuard) Scan(text string) []string {
	if g == nil || g.action == GuardOff || text == "" {
		return nil
	}
	var matches []string
	for _, gp := range g.patterns {
		if gp.pattern.MatchString(text) {
			matches = append(matches, gp.name)
		}
	}
	return matches
}

// Inspect scans text and logs matches attributed to source (a tool name).
func (g *ContentGuard) Inspect(source, text string) []string {
	matches := g.Scan(text)
	if len(matches) == 0 {
		return nil
	}
	if g.action == GuardLog {
		slog.Debug("agent: possible prompt injection in tool output", "tool", source, "patterns", matches)
	} else {
		slog.Warn("agent: possible prompt injection in tool output", "tool", source, "patterns", matches)
	}
	return matches
}

func defaultGuardPatterns() []guardPattern {
	return []guardPattern{
		{
			name:    "ignore_instructions",
			pattern: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|prompts?|directives?|guidelines?)`),
		},
		{
			name:    "role_override",
			pattern: regexp.MustCompile(`(?i)(you are now|from now on you are|pretend you are|act as if you are|imagine you are)\s+`),
		},
		{
			name:    "system_tags",
			pattern: regexp.MustCompile(`(?i)</?system>|\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>system`),
		},
		{
			name:    "instruction_injection",
			pattern: regexp.MustCompile(`(?i)(new instructions?:|override:|system prompt:|<\|system\|>)`),
		},
		{
			name:    "null_bytes",
			pattern: regexp.MustCompile(`\x00`),
		},
		{
			name:    "delimiter_escape",
			pattern: regexp.MustCompile(`(?i)(end of system|begin user input|</?(instructions?|rules|prompt|context)>)`),
		},
	}
}
