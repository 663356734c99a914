package providers

// MCP servers publish zod/pydantic generated JSON Schemas. Keys listed here
// are rejected or ignored by the provider's tool API and are stripped
// before the request is built.
var unsupportedSchemaKeys = map[string][]string{
	"openai":    {"$schema"},
	"anthropic": {"$schema", "$ref", "$defs"},
}

// CleanToolSchemas returns a copy of tools with provider-incompatible
// JSON Schema keys removed from each tool's parameters.
// Returns the original slice unchanged for providers that need no cleaning.
func CleanToolSchemas(providerName string, tools []ToolDefinition) []ToolDefinition {
	removeKeys := unsupportedSchemaKeys[providerName]
	if removeKeys == nil || len(tools) == 0 {
		return tools
	}

	cleaned := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		cleaned[i] = ToolDefinition{
			Type: t.Type,
			Function: ToolFunctionSchema{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  cleanSchema(t.Function.Parameters, removeKeys),
			},
		}
	}
	return cleaned
}

// cleanSchema recursively removes keys from a JSON Schema map.
func cleanSchema(schema map[string]interface{}, removeKeys []string) map[string]interface{} {
	if schema == nil {
		return nil
	}

	result := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		if containsKey(removeKeys, k) {
			continue
		}

		switch val := v.(type) {
		case map[string]interface{}:
			result[k] = cleanSchema(val, removeKeys)
		case []interface{}:
			items := make([]interface{}, len(val))
			for i, item := range val {
				if m, ok := item.(map[string]interface{}); ok {
					items[i] = cleanSchema(m, removeKeys)
				} else {
					items[i] = item
				}
			}
			result[k] = items
		default:
			result[k] = v
		}
	}
	return result
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
