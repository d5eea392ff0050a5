// Package mcpserver exposes weave's resolver and workflow engine as
// MCP tools over stdio, so an agent can validate a workflow or resolve
// a logical key without shelling out to the CLI.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dgxrun/weave/internal/loader"
	"github.com/dgxrun/weave/pkg/selector"
	"github.com/dgxrun/weave/pkg/workflow"
)

// Server wraps an MCP server exposing weave_validate and
// weave_resolve_selector tools.
type Server struct {
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

// New returns a Server with weave's tools registered.
func New(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = "weave"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{mcpServer: server.NewMCPServer(cfg.Name, cfg.Version), logger: cfg.Logger}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "weave_validate",
		Description: "Statically validate a weave workflow definition file. Returns validation issues, if any.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workflow_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to a JSON or YAML workflow definition file",
				},
			},
			Required: []string{"workflow_path"},
		},
	}, s.handleValidate)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "weave_resolve_selector",
		Description: "Resolve a logical key against a selector map and an inert document (reports attempts, not a live DOM match).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"selectors_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to a JSON or YAML selector map file",
				},
				"logical_key": map[string]interface{}{
					"type":        "string",
					"description": "The logical key to resolve",
				},
			},
			Required: []string{"selectors_path", "logical_key"},
		},
	}, s.handleResolveSelector)
}

func (s *Server) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("workflow_path")
	if err != nil {
		return mcp.NewToolResultError("missing or invalid 'workflow_path' argument"), nil
	}

	def, err := loader.LoadDefinition(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading workflow: %v", err)), nil
	}

	var v workflow.Validator = workflow.NoopValidator{}
	issues := v.Validate(&def)

	resultJSON, err := json.MarshalIndent(struct {
		Valid  bool                       `json:"valid"`
		Issues []workflow.ValidationIssue `json:"issues"`
	}{Valid: len(issues) == 0, Issues: issues}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleResolveSelector(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	selectorsPath, err := req.RequireString("selectors_path")
	if err != nil {
		return mcp.NewToolResultError("missing or invalid 'selectors_path' argument"), nil
	}
	logicalKey, err := req.RequireString("logical_key")
	if err != nil {
		return mcp.NewToolResultError("missing or invalid 'logical_key' argument"), nil
	}

	smap, err := loader.LoadSelectorMap(selectorsPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading selector map: %v", err)), nil
	}

	resolver := selector.NewResolver(smap, inertDocument{})
	result := resolver.Resolve(ctx, selector.LogicalKey(logicalKey), selector.ResolveOptions{})

	resultJSON, err := json.MarshalIndent(struct {
		Resolved   bool                      `json:"resolved"`
		ResolvedBy *selector.SelectorTry     `json:"resolvedBy,omitempty"`
		Attempts   []selector.ResolveAttempt `json:"attempts"`
	}{Resolved: result.Resolved(), ResolvedBy: result.ResolvedBy, Attempts: result.Attempts}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// Run serves the MCP server over stdio until the transport closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting weave MCP server")
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// inertDocument mirrors internal/commands/run's nullDocument: it never
// matches anything, so weave_resolve_selector always reports the
// attempts made and a miss, useful for checking selector syntax
// without a live browser.
type inertDocument struct{}

func (inertDocument) QueryAll(ctx context.Context, cssSelector string, root selector.Element) ([]selector.Element, error) {
	return nil, nil
}
func (inertDocument) QueryXPath(ctx context.Context, expr string, root selector.Element) ([]selector.Element, error) {
	return nil, nil
}
func (inertDocument) ScrollingElement(ctx context.Context) (selector.Element, error) { return nil, nil }
func (inertDocument) ActiveElement(ctx context.Context) (selector.Element, bool, error) {
	return nil, false, nil
}
