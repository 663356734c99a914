package config

import (
	"regexp"
	"strings"
)

const maxToolPrefixLen = 24

var (
	validPrefixRe  = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,23}$`)
	invalidChars   = regexp.MustCompile(`[^a-z0-9_-]+`)
	leadingJoiner  = regexp.MustCompile(`^[-_]+`)
	trailingJoiner = regexp.MustCompile(`[-_]+$`)
)

// NormalizeToolPrefix converts a user-provided prefix into one that keeps
// "{prefix}__{tool}" inside the OpenAI function-name charset:
//   - Lowercase, max 24 chars
//   - Only [a-z0-9_-] allowed
//   - Invalid chars replaced with "_"
//   - Leading/trailing "-" and "_" stripped
//   - Empty result means no prefix
func NormalizeToolPrefix(prefix string) string {
	lower := strings.ToLower(strings.TrimSpace(prefix))
	if lower == "" {
		return ""
	}
	if validPrefixRe.MatchString(lower) && !trailingJoiner.MatchString(lower) {
		return lower
	}

	result := invalidChars.ReplaceAllString(lower, "_")
	result = leadingJoiner.ReplaceAllString(result, "")
	if len(result) > maxToolPrefixLen {
		result = result[:maxToolPrefixLen]
	}
	return trailingJoiner.ReplaceAllString(result, "")
}
