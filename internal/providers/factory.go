package providers

import (
	"fmt"
	"slices"
)

// Names lists the providers New can build.
var Names = []string{"openai", "anthropic"}

// Known reports whether New accepts name. Empty selects openai.
func Known(name string) bool {
	return name == "" || slices.Contains(Names, name)
}

// New builds the provider registered under name.
func New(name, apiKey, apiBase, model string) (Provider, error) {
	switch name {
	case "", "openai":
		return NewOpenAIProvider("openai", apiKey, apiBase, model), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, apiBase, model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
