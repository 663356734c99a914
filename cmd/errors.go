package cmd

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/agent"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/config"
)

// formatRunError returns a one-line hint for a failed run, or "" when the
// error message already says everything. Raw API payloads are never echoed.
func formatRunError(err error) string {
	if err == nil {
		return ""
	}

	var missingExe *config.MissingExecutableError
	if errors.As(err, &missingExe) {
		return ""
	}
	if errors.Is(err, agent.ErrMaxTurnsExceeded) {
		return "Hint: the model kept calling tools. Raise agent.max_turns or simplify the question."
	}
	var dup *agent.DuplicateToolError
	if errors.As(err, &dup) {
		return "Hint: two servers expose the same tool name. Set tool_prefix on one of them."
	}

	lower := strings.ToLower(err.Error())

	if strings.Contains(lower, "start tool servers") {
		return "Hint: a tool server failed to start. Run `mcpdemo doctor` and retry with --verbose to see its stderr."
	}

	if isContextOverflowError(lower) {
		return "Hint: the conversation no longer fits the model context window."
	}

	if containsAny(lower, "rate limit", "rate_limit", "too many requests", "429", "quota exceeded", "resource_exhausted") {
		return "Hint: API rate limit reached. Please try again later."
	}

	if strings.Contains(lower, "overloaded") {
		return "Hint: the AI service is temporarily overloaded. Please try again in a moment."
	}

	if containsAny(lower, "billing", "insufficient credits", "credit balance", "payment required", "402") {
		return "Hint: API billing error. Your API key may have run out of credits."
	}

	if containsAny(lower, "invalid api key", "invalid_api_key", "incorrect api key", "unauthorized", "authentication", "401", "403") {
		return "Hint: authentication failed. Check OPENAI_API_KEY (or ANTHROPIC_API_KEY)."
	}

	if containsAny(lower, "timeout", "timed out", "deadline exceeded") {
		return "Hint: the request timed out. Please try again."
	}

	if strings.Contains(lower, "context canceled") {
		return ""
	}

	if containsAny(lower, "not a valid model", "model_not_found", "does not exist") {
		return "Hint: model configuration error. Check agent.model or --model."
	}

	slog.Debug("unclassified run error", "error", err)
	return ""
}

// isContextOverflowError checks for context window/size overflow patterns.
func isContextOverflowError(lower string) bool {
	return containsAny(lower,
		"context_length_exceeded",
		"context length exceeded",
		"maximum context length",
		"prompt is too long",
		"request_too_large",
	) || (strings.Contains(lower, "context") &&
		containsAny(lower, "overflow", "too large", "too long"))
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
