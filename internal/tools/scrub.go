package tools

import "regexp"

// Credential patterns scrubbed from tool output before it reaches the model.
// The filesystem server returns raw file contents, so a stray key in a
// sample file would otherwise be echoed into the conversation and the trace.
var credentialPatterns = []*regexp.Regexp{
	// Anthropic (before OpenAI, which shares the sk- prefix)
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{20,}`),
	// OpenAI, including project keys
	regexp.MustCompile(`sk-(proj-)?[a-zA-Z0-9_-]{20,}`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`),
	// AWS access key ids
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	// Generic key=value patterns (case-insensitive)
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer|authorization)\s*[:=]\s*["']?\S{8,}["']?`),
}

const redactedPlaceholder = "[REDACTED]"

// ScrubCredentials replaces known credential patterns in text with [REDACTED].
func ScrubCredentials(text string) string {
	for _, pat := range credentialPatterns {
		text = pat.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}
