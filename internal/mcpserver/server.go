// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes the workflow command surface as MCP tools so an
// editor or chat client can drive a project.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/internal/convert"
	"github.com/pdiddy/docflow/internal/workflow"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// SaveFunc persists the state after a tool changed it.
type SaveFunc func(ctx context.Context, s workflow.State) error

// Server holds what the tool handlers need.
type Server struct {
	engine  *workflow.Engine
	convert convert.Converter
	save    SaveFunc
}

// New returns an MCP server whose tools run against e. Files named by tool
// arguments are read through conv. save may be nil.
func New(e *workflow.Engine, conv convert.Converter, save SaveFunc) *server.MCPServer {
	s := &Server{engine: e, convert: conv, save: save}
	srv := server.NewMCPServer(
		"docflow",
		Version,
		server.WithToolCapabilities(false),
	)
	srv.AddTools(s.tools()...)
	return srv
}

// Serve runs srv over stdio until the client disconnects.
func Serve(srv *server.MCPServer) error {
	return server.ServeStdio(srv)
}

// query wraps a read-only handler.
func query[T any](fn func(ctx context.Context, args T) (any, error)) server.ToolHandlerFunc {
	return mcp.NewTypedToolHandler[T](func(ctx context.Context, _ mcp.CallToolRequest, args T) (*mcp.CallToolResult, error) {
		v, err := fn(ctx, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(v)
	})
}

// command wraps a handler that changes state and saves the result.
func command[T any](s *Server, fn func(ctx context.Context, args T) (any, error)) server.ToolHandlerFunc {
	return mcp.NewTypedToolHandler[T](func(ctx context.Context, req mcp.CallToolRequest, args T) (*mcp.CallToolResult, error) {
		v, err := fn(ctx, args)
		if serr := s.persist(ctx); serr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("saving project: %v", serr)), nil
		}
		if err != nil {
			klog.V(2).Infof("mcp %s: %v", req.Params.Name, err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return textResult(v)
	})
}

// persist saves after every command, failed ones included, so agent status
// changes survive.
func (s *Server) persist(ctx context.Context) error {
	if s.save == nil {
		return nil
	}
	return s.save(ctx, s.engine.Snapshot())
}

func textResult(v any) (*mcp.CallToolResult, error) {
	if text, ok := v.(string); ok {
		return mcp.NewToolResultText(text), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
