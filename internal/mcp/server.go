// Package mcp exposes the diagnosis pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/service"
)

// Server metadata reported to MCP clients.
const (
	ServerName    = "symptom-dx-server"
	ServerVersion = "v1.0.0"
)

// Server represents the symptom diagnosis MCP server
type Server struct {
	service   *service.DiagnosisService
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance with all tools registered.
func NewServer(svc *service.DiagnosisService, logger *logrus.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("diagnosis service is required")
	}

	serverInfo := &mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}

	server := &Server{
		service:   svc,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}
	server.registerTools()
	return server, nil
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.WithField("transport_type", "stdio").Info("Starting symptom diagnosis MCP server")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// ToolNames lists the registered tools in registration order.
func ToolNames() []string {
	return []string{
		ToolListSymptoms,
		ToolMatchSymptoms,
		ToolPredictDisease,
		ToolDescribeDisease,
		ToolExtractDocument,
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolListSymptoms,
		Description: "List every symptom the current model understands, with its readable form.",
	}, s.handleListSymptoms)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolMatchSymptoms,
		Description: "Find known symptoms mentioned in free text.",
	}, s.handleMatchSymptoms)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolPredictDisease,
		Description: "Predict the most likely diseases for a list of symptom identifiers.",
	}, s.handlePredictDisease)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolDescribeDisease,
		Description: "Return the informational description for a disease label.",
	}, s.handleDescribeDisease)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolExtractDocument,
		Description: "Read a local image or PDF, extract its text and optionally predict from the symptoms found.",
	}, s.handleExtractDocument)

	s.logger.WithField("tool_count", len(ToolNames())).Info("Registered MCP tools")
}
