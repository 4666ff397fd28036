package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/folio-mcp/internal/revalidate"
)

// RevalidateHandler returns the MCP tool handler for the "revalidate" tool.
func RevalidateHandler(h *revalidate.Handler) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := h.Revalidate(path, req.GetString("secret", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Revalidated %s: %d cached entries evicted.", res.Path, res.Evicted)), nil
	}
}
