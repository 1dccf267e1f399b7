// Package mcp exposes the assessment pipeline and the clinician feedback store as Model Context
// Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/feedback"
	"github.com/thyroid-risk-assessor/internal/intake"
)

// Dependencies are the collaborators behind the MCP tools.
type Dependencies struct {
	Assessor domain.Assessor
	Parser   *intake.Parser
	Schema   domain.Schema
	// Feedback may be nil; the feedback tools are then not registered.
	Feedback feedback.Store
	// ExportDir receives export_feedback files.
	ExportDir string
	Logger    *logrus.Logger
}

type toolFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Server wraps the MCP SDK server and the registered tool functions.
type Server struct {
	config    domain.MCPConfig
	deps      Dependencies
	mcpServer *mcp.Server
	tools     map[string]toolFunc
	logger    *logrus.Logger
}

// NewServer creates the MCP server and registers every tool the dependencies support.
func NewServer(cfg domain.MCPConfig, deps Dependencies) (*Server, error) {
	if deps.Assessor == nil {
		return nil, errors.New("assessor is required")
	}
	if deps.Parser == nil {
		deps.Parser = intake.NewParser(intake.Options{ApplyDefaults: true})
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = "thyroid-risk-assessor"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "1.0.0"
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		tools:  make(map[string]toolFunc),
		logger: logger,
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)

	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.addTool(assessPatientTool(s.deps.Schema), s.assessPatient)
	s.addTool(describeSchemaTool(), s.describeSchema)

	if s.deps.Feedback == nil {
		s.logger.Info("Feedback store not configured, feedback tools disabled")
	} else {
		s.addTool(submitFeedbackTool(), s.submitFeedback)
		s.addTool(queryFeedbackTool(), s.queryFeedback)
		s.addTool(listFeedbackTool(), s.listFeedback)
		s.addTool(exportFeedbackTool(), s.exportFeedback)
		s.addTool(importFeedbackTool(), s.importFeedback)
	}

	s.logger.WithField("tool_count", len(s.tools)).Info("Successfully registered all tools")
}

func (s *Server) addTool(tool *mcp.Tool, fn toolFunc) {
	s.tools[tool.Name] = fn
	s.mcpServer.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		return s.invoke(ctx, tool.Name, args), nil
	})
	s.logger.WithField("tool_name", tool.Name).Debug("Registered MCP tool")
}

// ToolNames lists the registered tools in name order.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// invoke runs one tool under the configured timeout and renders its outcome. Tool failures are
// reported in the result, never as protocol errors.
func (s *Server) invoke(ctx context.Context, name string, args json.RawMessage) *mcp.CallToolResult {
	fn, ok := s.tools[name]
	if !ok {
		return s.errorResult(domain.NewAPIError(domain.ErrNotFound, fmt.Sprintf("unknown tool %q", name), "", ""))
	}

	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := fn(ctx, args)
	entry := s.logger.WithFields(logrus.Fields{
		"tool":     name,
		"duration": time.Since(start),
	})
	if err != nil {
		entry.WithError(err).Warn("Tool call failed")
		return s.errorResult(err)
	}
	entry.Info("Tool call completed")

	text, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return s.errorResult(fmt.Errorf("failed to encode tool result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}
}

func (s *Server) errorResult(err error) *mcp.CallToolResult {
	code, status := domain.Classify(err)

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		details := ""
		if status < 500 {
			details = err.Error()
		}
		apiErr = domain.NewAPIError(code, messageFor(code), details, "")
	}

	text, _ := json.MarshalIndent(map[string]any{"error": apiErr}, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		IsError: true,
	}
}

func messageFor(code string) string {
	switch code {
	case domain.ErrValidation:
		return "invalid tool arguments"
	case domain.ErrModelInference:
		return "model inference failed"
	case domain.ErrConsistency:
		return "model artifacts are inconsistent"
	case domain.ErrRequestCancellation:
		return "tool call cancelled"
	default:
		return "internal error"
	}
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve runs the server over the given transport.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	s.logger.WithFields(logrus.Fields{
		"server":        s.config.ServerName,
		"version":       s.config.ServerVersion,
		"model_version": s.deps.Schema.ModelVersion,
	}).Info("Starting MCP server")

	if err := s.mcpServer.Run(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
