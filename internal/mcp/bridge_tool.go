package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tools"
)

const defaultToolTimeoutSec = 60

// BridgeTool adapts an MCP tool into the tools.Tool interface.
// Execute is delegated to the owning server.
type BridgeTool struct {
	server         *Server
	toolName       string // original MCP tool name
	registeredName string // may include prefix: "{prefix}__{toolName}"
	description    string
	inputSchema    map[string]interface{}
	timeoutSec     int
}

// NewBridgeTool creates a BridgeTool from an MCP tool definition.
func NewBridgeTool(server *Server, mcpTool mcpgo.Tool) *BridgeTool {
	cfg := server.Config()
	registered := mcpTool.Name
	if cfg.ToolPrefix != "" {
		registered = cfg.ToolPrefix + "__" + mcpTool.Name
	}
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = defaultToolTimeoutSec
	}

	return &BridgeTool{
		server:         server,
		toolName:       mcpTool.Name,
		registeredName: registered,
		description:    mcpTool.Description,
		inputSchema:    inputSchemaToMap(mcpTool.InputSchema),
		timeoutSec:     timeoutSec,
	}
}

func (t *BridgeTool) Name() string                       { return t.registeredName }
func (t *BridgeTool) Description() string                { return t.description }
func (t *BridgeTool) Parameters() map[string]interface{} { return t.inputSchema }

// ServerName returns the name of the MCP server this tool belongs to.
func (t *BridgeTool) ServerName() string { return t.server.Name() }

// OriginalName returns the MCP tool name without prefix.
func (t *BridgeTool) OriginalName() string { return t.toolName }

func (t *BridgeTool) Execute(ctx context.Context, args map[string]interface{}) *tools.Result {
	if !t.server.Connected() {
		return tools.ErrorResult(fmt.Sprintf("MCP server %q is disconnected", t.server.Name())).
			WithError(ErrNotConnected)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(t.timeoutSec)*time.Second)
	defer cancel()

	result, err := t.server.CallTool(callCtx, t.toolName, args)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return tools.ErrorResult(fmt.Sprintf("MCP tool %q timeout after %ds", t.registeredName, t.timeoutSec)).
				WithError(err)
		}
		return tools.ErrorResult(fmt.Sprintf("MCP tool %q error: %v", t.registeredName, err)).WithError(err)
	}
	if result == nil {
		return tools.ErrorResult(fmt.Sprintf("MCP tool %q returned no result", t.registeredName))
	}

	text := extractTextContent(result)
	if result.IsError {
		return tools.ErrorResult(text)
	}
	return tools.NewResult(text)
}

// inputSchemaToMap converts mcp.ToolInputSchema to the map form used by
// tools.Tool.Parameters.
func inputSchemaToMap(schema mcpgo.ToolInputSchema) map[string]interface{} {
	m := map[string]interface{}{
		"type": schema.Type,
	}
	if schema.Type == "" {
		m["type"] = "object"
	}
	if len(schema.Properties) > 0 {
		m["properties"] = schema.Properties
	} else {
		// OpenAI rejects object schemas without properties.
		m["properties"] = map[string]interface{}{}
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	if schema.AdditionalProperties != nil {
		m["additionalProperties"] = schema.AdditionalProperties
	}
	// Pydantic servers put nested models behind "$ref": "#/$defs/...".
	if len(schema.Defs) > 0 {
		m["$defs"] = schema.Defs
	}
	return m
}

// extractTextContent concatenates all text content from a CallToolResult.
func extractTextContent(result *mcpgo.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcpgo.TextContent:
			parts = append(parts, v.Text)
		case *mcpgo.TextContent:
			parts = append(parts, v.Text)
		default:
			parts = append(parts, fmt.Sprintf("[non-text content: %T]", c))
		}
	}
	return strings.Join(parts, "\n")
}
