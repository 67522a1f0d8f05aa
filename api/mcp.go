package api

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sopify/sopify/kit"
)

// RegisterMCP exposes the SOP library as MCP tools, so assistants can look
// up documented procedures.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerListTool(srv)
	s.registerGetTool(srv)
	s.registerMarkdownTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- sop_list ---

type listSOPsReq struct {
	UserID        string `json:"userId,omitempty"`
	ExtensionOnly bool   `json:"extensionOnly,omitempty"`
}

func (s *Service) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sop_list",
		Description: "List stored SOP documents, newest updated first. Optionally filter by owner and recorder origin.",
		InputSchema: inputSchema(map[string]any{
			"userId":        map[string]any{"type": "string", "description": "Only documents owned by this user"},
			"extensionOnly": map[string]any{"type": "boolean", "description": "Only documents captured by the recorder"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listSOPsReq)
		if r.UserID != "" {
			return s.store.ListSOPsByUser(ctx, r.UserID, r.ExtensionOnly)
		}
		return s.store.ListSOPs(ctx)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listSOPsReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- sop_get ---

type getSOPReq struct {
	ID string `json:"id"`
}

func (s *Service) registerGetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sop_get",
		Description: "Fetch a single SOP document by id, including its steps.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "SOP document id"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*getSOPReq)
		return s.store.GetSOP(ctx, r.ID)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r getSOPReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- sop_markdown ---

func (s *Service) registerMarkdownTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sop_markdown",
		Description: "Render an SOP document as markdown.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "SOP document id"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*getSOPReq)
		sop, err := s.store.GetSOP(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		md, err := s.renderer.Markdown(sop)
		if err != nil {
			return nil, err
		}
		return map[string]any{"markdown": string(md)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r getSOPReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
