// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Chronicle report tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/chronicle/internal/insight"
	"github.com/starford/chronicle/internal/models"
)

// JournalFormatURI is the resource describing the accepted journal format.
const JournalFormatURI = "chronicle://journal-format"

// Server wraps the MCP server with Chronicle tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *insight.Service
	user string
	root string
}

// New creates a new MCP server with all Chronicle tools registered. Journal
// paths are resolved below root; an empty root accepts any path. Every tool
// acts on behalf of user.
func New(svc *insight.Service, user, root string) *Server {
	s := &Server{svc: svc, user: user, root: root}

	s.mcp = server.NewMCPServer(
		"Chronicle",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("estimate_cost",
		mcp.WithDescription("Estimate token usage and dollar cost of a report for a journal file, "+
			"taking already cached period summaries into account."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the journal file")),
	), s.estimateCost)

	s.mcp.AddTool(mcp.NewTool("generate_report",
		mcp.WithDescription("Generate an insight report from a journal file. Older entries are "+
			"summarized per week and month; recent entries are used in full. "+
			"See the "+JournalFormatURI+" resource for the accepted journal format."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the journal file")),
		mcp.WithString("date", mcp.Description("Report date as displayed in the title (default: today)")),
		mcp.WithString("topics", mcp.Description("Comma-separated extra topics to cover")),
	), s.generateReport)

	s.mcp.AddTool(mcp.NewTool("list_summaries",
		mcp.WithDescription("List cached weekly or monthly period summaries."),
		mcp.WithString("type", mcp.Description("weekly or monthly (empty for both)")),
	), s.listSummaries)

	s.mcp.AddTool(mcp.NewTool("cleanup_summaries",
		mcp.WithDescription("Delete cached summaries whose period content changed in the journal file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the journal file")),
	), s.cleanupSummaries)

	s.mcp.AddResource(
		mcp.NewResource(JournalFormatURI, "Journal Format",
			mcp.WithResourceDescription("Entry-tagged journal format accepted by every tool."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readJournalFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// resolve maps a tool path argument to a file, rejecting paths that leave root.
func (s *Server) resolve(path string) (string, error) {
	if s.root == "" {
		return filepath.Clean(path), nil
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.root, path)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes journal directory: %s", path)
	}
	return abs, nil
}

func (s *Server) readJournal(req mcp.CallToolRequest) (string, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return "", err
	}
	abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("not found: %s", path)
	}
	return string(data), nil
}

func (s *Server) estimateCost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	journal, err := s.readJournal(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	est, err := s.svc.Estimate(ctx, s.user, journal, timeZero)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(est, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) generateReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	journal, err := s.readJournal(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := ""
	if d, err := req.RequireString("date"); err == nil {
		date = d
	}
	var topics []string
	if t, err := req.RequireString("topics"); err == nil {
		topics = strings.Split(t, ",")
	}

	res, err := s.svc.Generate(ctx, insight.Request{
		User:          s.user,
		Journal:       journal,
		FormattedDate: date,
		Topics:        topics,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("could not generate report: %v", err)), nil
	}
	return mcp.NewToolResultText(res.Report), nil
}

func (s *Server) listSummaries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var typ models.BatchType
	if t, err := req.RequireString("type"); err == nil {
		typ = models.BatchType(strings.ToLower(strings.TrimSpace(t)))
	}
	if typ != "" && !typ.Valid() {
		return mcp.NewToolResultError("type must be weekly or monthly"), nil
	}
	items, err := s.svc.Summaries(ctx, s.user, typ)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no cached summaries"), nil
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "## %s (%s, %d entries)\n%s\n\n", it.PeriodLabel, it.Type, it.EntryCount, it.Summary)
	}
	return mcp.NewToolResultText(strings.TrimSpace(b.String())), nil
}

func (s *Server) cleanupSummaries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	journal, err := s.readJournal(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Cleanup(ctx, s.user, journal, timeZero)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d weekly, %d monthly", res.Weekly, res.Monthly)), nil
}

func (s *Server) readJournalFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      JournalFormatURI,
			MIMEType: "text/markdown",
			Text:     JournalFormatContract,
		},
	}, nil
}
