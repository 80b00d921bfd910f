package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/01cheese/OnlineCompiler/config"
	"github.com/01cheese/OnlineCompiler/task"
)

// Dispatcher runs tasks to completion. dispatcher.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, t task.Task) task.Result
	Languages() []string
}

// MCPServer represents the MCP server. The HTTP transport is built in New
// so Shutdown never races ServeHTTP over the field.
type MCPServer struct {
	config      *config.Config
	logger      *zap.Logger
	dispatcher  Dispatcher
	mcpServer   *server.MCPServer
	httpServer  *server.StreamableHTTPServer
	httpStarted atomic.Bool
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, dispatcher Dispatcher) (*MCPServer, error) {
	s := &MCPServer{
		config:     cfg,
		logger:     logger,
		dispatcher: dispatcher,
	}

	logger.Info("MCP server configured",
		zap.String("mcp.transport", cfg.MCP.Transport),
		zap.Int("mcp.http_port", cfg.MCP.HTTPPort),
		zap.Strings("languages", dispatcher.Languages()),
	)

	s.mcpServer = server.NewMCPServer("online-compiler", "Runs untrusted code snippets in isolated containers")
	s.registerExecuteCodeTool()
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)

	return s, nil
}

func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name:        "execute_code",
		Description: "Screen and execute a code snippet in a sandbox and return its output",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to run",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Language name or alias, e.g. python, js, c++",
					"examples":    s.dispatcher.Languages(),
				},
			},
			Required: []string{"code", "language"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	language, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}

	t := task.Task{
		ID:          uuid.NewString(),
		Language:    language,
		SourceCode:  code,
		SubmittedAt: time.Now().UTC(),
	}

	s.logger.Info("code execution requested",
		zap.String("task_id", t.ID),
		zap.String("language", language))

	result := s.dispatcher.Dispatch(ctx, t)

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(payload),
			},
		},
		IsError: result.Status != task.StatusFinished,
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP. It blocks until Shutdown is called.
func (s *MCPServer) ServeHTTP() error {
	port := s.config.MCP.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	s.httpStarted.Store(true)
	return s.httpServer.Start(fmt.Sprintf(":%d", port))
}

// Shutdown stops the HTTP transport if it was started.
func (s *MCPServer) Shutdown(ctx context.Context) error {
	if !s.httpStarted.Load() {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
