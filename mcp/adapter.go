package mcp

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	x402 "github.com/x402-foundation/qrpay"
)

// toolFunc handles raw tool arguments and returns a JSON-serializable value
type toolFunc func(ctx context.Context, args json.RawMessage) (interface{}, error)

// handle adapts a toolFunc to the SDK handler. Failures become tool results
// with IsError set so the calling agent can read the message.
func (s *Server) handle(name string, fn toolFunc) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}

		value, err := fn(ctx, args)
		if err != nil {
			s.logger.Warn("tool call failed", map[string]any{"tool": name, "error": err})
			return errorResult(x402.ErrorMessage(err)), nil
		}

		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		s.logger.Debug("tool call", map[string]any{"tool": name})
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		}, nil
	}
}

func errorResult(message string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: message}},
	}
}
