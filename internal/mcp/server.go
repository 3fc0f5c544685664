package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-specform/internal/config"
	"github.com/a3tai/mcp-specform/internal/convert"
	"github.com/a3tai/mcp-specform/internal/descriptions"
	specerrors "github.com/a3tai/mcp-specform/internal/errors"
	"github.com/a3tai/mcp-specform/internal/pdf"
	"github.com/a3tai/mcp-specform/internal/rules"
	"github.com/a3tai/mcp-specform/internal/security"
)

// maxListedPDFs bounds the directory listing in server info
const maxListedPDFs = 10

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *convert.Service
	reader    *pdf.Reader
	search    *pdf.Search
	input     *security.PathValidator
	output    *security.PathValidator
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *convert.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("conversion service cannot be nil")
	}

	input, err := security.NewPathValidator(cfg.WorkDirectory)
	if err != nil {
		return nil, fmt.Errorf("invalid work directory: %w", err)
	}
	output, err := security.NewPathValidator(cfg.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("invalid output directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // the tool set is fixed
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		reader:    pdf.NewReader(cfg.MaxFileSize),
		search:    pdf.NewSearch(cfg.MaxFileSize),
		input:     input,
		output:    output,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	modes := modeNames(s.service.Modes())

	convertTool := mcp.NewTool(
		descriptions.ConvertTool,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ConvertTool)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the specification PDF, relative to the work directory or absolute inside it"),
		),
		mcp.WithString("product_name",
			mcp.Required(),
			mcp.Description("Product name written into the form and used for the output file name"),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Specification layout of the PDF"),
			mcp.Enum(modes...),
		),
		mcp.WithString("output",
			mcp.Description("Output file or directory inside the output directory (defaults to <product>_converted.docx)"),
		),
	)
	s.mcpServer.AddTool(convertTool, s.handleConvert)

	previewTool := mcp.NewTool(
		descriptions.PreviewTool,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.PreviewTool)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the specification PDF, relative to the work directory or absolute inside it"),
		),
		mcp.WithString("product_name",
			mcp.Required(),
			mcp.Description("Product name written into the form"),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Specification layout of the PDF"),
			mcp.Enum(modes...),
		),
	)
	s.mcpServer.AddTool(previewTool, s.handlePreview)

	serverInfoTool := mcp.NewTool(
		descriptions.ServerInfoTool,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ServerInfoTool)),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Tool handlers
func (s *Server) handleConvert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := s.buildRequest(request)
	if err != nil {
		return toolError(err), nil
	}

	result, err := s.service.Convert(ctx, req)
	if err != nil {
		return toolError(err), nil
	}

	target, err := s.output.OutputPath(request.GetString("output", ""), result.FileName)
	if err != nil {
		return toolError(specerrors.NewMissingInput(err.Error())), nil
	}
	if err := os.WriteFile(target, result.Data, 0o644); err != nil {
		return toolError(specerrors.Wrap(specerrors.KindUnclassified, fmt.Errorf("failed to write document: %w", err))), nil
	}
	log.Printf("[%s] wrote %s (%d bytes)", req.ID, target, len(result.Data))

	return mcp.NewToolResultText(s.formatConvertResult(result, target)), nil
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := s.buildRequest(request)
	if err != nil {
		return toolError(err), nil
	}

	result, err := s.service.Preview(ctx, req)
	if err != nil {
		return toolError(err), nil
	}

	return mcp.NewToolResultText(s.formatPreviewResult(result)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.search.FindPDFs(s.input.Root(), 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatServerInfo(files)), nil
}

// buildRequest reads the shared tool arguments and loads the PDF
func (s *Server) buildRequest(request mcp.CallToolRequest) (convert.Request, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return convert.Request{}, specerrors.NewMissingInput(err.Error())
	}
	product, err := request.RequireString("product_name")
	if err != nil {
		return convert.Request{}, specerrors.NewMissingInput(err.Error())
	}
	mode, err := request.RequireString("mode")
	if err != nil {
		return convert.Request{}, specerrors.NewMissingInput(err.Error())
	}

	resolved, err := s.input.NormalizePath(path)
	if err != nil {
		return convert.Request{}, specerrors.NewMissingInput(err.Error())
	}
	data, err := s.reader.ReadFile(resolved)
	if err != nil {
		return convert.Request{}, specerrors.NewMissingInput(err.Error()).WithContext(resolved)
	}

	return convert.Request{
		ID:          uuid.NewString(),
		Mode:        strings.ToUpper(strings.TrimSpace(mode)),
		ProductName: product,
		PDF:         data,
	}, nil
}

// toolError reports a failed conversion with its kind and user hint
func toolError(err error) *mcp.CallToolResult {
	ce := specerrors.Normalize(err)
	text := fmt.Sprintf("Conversion failed (%s): %s", ce.Kind, ce.Message)
	if ce.Field != "" {
		text += fmt.Sprintf("\nField: %s", ce.Field)
	}
	if ce.Context != "" {
		text += fmt.Sprintf("\nContext: %s", ce.Context)
	}
	text += fmt.Sprintf("\nHint: %s", ce.Hint)
	return mcp.NewToolResultError(text)
}

// Formatting methods
func (s *Server) formatConvertResult(result *convert.Result, target string) string {
	text := "Company form created\n"
	text += fmt.Sprintf("File: %s\n", target)
	text += fmt.Sprintf("Size: %d bytes\n", len(result.Data))
	text += fmt.Sprintf("Mode: %s (%s)\n", result.Resolution.Mode, s.service.Variant())
	text += fmt.Sprintf("PDF pages: %d\n", result.Pages)
	text += "\nFields:\n"
	text += formatFields(result.Fields, result.Resolution.Extracted)

	if result.Replace != nil {
		text += "\nReplacements:\n"
		for _, c := range result.Replace.Literals {
			text += fmt.Sprintf("  %q -> %q: %d in paragraphs, %d in tables\n",
				c.Literal, c.Replacement, c.InParagraphs, c.InTables)
		}
		if result.Replace.ParagraphsSkipped > 0 {
			text += fmt.Sprintf("  %d paragraph(s) could not be rewritten\n", result.Replace.ParagraphsSkipped)
		}
	}
	if result.Render != nil {
		text += fmt.Sprintf("\nTags rendered: %d\n", result.Render.Rendered)
		if len(result.Render.Unresolved) > 0 {
			text += fmt.Sprintf("Unresolved tags: %s\n", strings.Join(result.Render.Unresolved, ", "))
		}
	}

	return text
}

func (s *Server) formatPreviewResult(result *convert.PreviewResult) string {
	text := fmt.Sprintf("Field preview for mode %s (%s)\n", result.Mode, result.Variant)
	text += fmt.Sprintf("PDF pages: %d (%d with text, %d characters)\n", result.Pages, result.TextPages, result.TextLength)
	text += fmt.Sprintf("Output file name: %s\n", result.FileName)
	text += "\nFields:\n"
	text += formatFields(result.Fields, result.Extracted)
	return text
}

func (s *Server) formatServerInfo(files []pdf.FileInfo) string {
	text := fmt.Sprintf("%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Variant: %s (strategy: %s, rules v%d)\n",
		s.service.Variant(), s.service.Strategy(), s.service.RulesVersion())
	text += fmt.Sprintf("Modes: %s\n", strings.Join(modeNames(s.service.Modes()), ", "))
	text += fmt.Sprintf("Template: %s", s.service.TemplatePath())
	if err := s.service.CheckTemplate(); err != nil {
		text += fmt.Sprintf(" (unavailable: %s)\n", specerrors.Normalize(err).Message)
	} else {
		text += " (ok)\n"
	}
	text += fmt.Sprintf("Work directory: %s\n", s.input.Root())
	text += fmt.Sprintf("Output directory: %s\n", s.output.Root())
	text += fmt.Sprintf("Max file size: %d MB\n\n", s.config.MaxFileSize/(1024*1024))

	if len(files) == 0 {
		text += "Directory contents: no PDF files found in the work directory\n\n"
	} else {
		text += fmt.Sprintf("Directory contents (%d PDF files found):\n", len(files))
		for i, file := range files {
			if i >= maxListedPDFs {
				text += fmt.Sprintf("   ... and %d more files\n", len(files)-maxListedPDFs)
				break
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, file.Rel, file.Size)
		}
		text += "\n"
	}

	text += "Available tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		text += fmt.Sprintf("  • %s\n", name)
	}
	return text
}

// formatFields lists the fields in their fixed order with their source
func formatFields(fields map[string]string, extracted map[string]bool) string {
	var text string
	for _, name := range rules.Fields {
		source := ""
		switch {
		case name == rules.FieldProduct || name == rules.FieldDate:
		case extracted[name]:
			source = " (extracted)"
		default:
			source = " (default)"
		}
		text += fmt.Sprintf("  %s: %s%s\n", name, fields[name], source)
	}
	return text
}

func modeNames(modes []rules.Mode) []string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	sort.Strings(names)
	return names
}

// Run serves MCP on stdio until stdin closes or ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting specform MCP server in stdio mode")
		log.Printf("Work directory: %s, output directory: %s", s.input.Root(), s.output.Root())
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(os.Stderr, "", log.LstdFlags))

	out := claimStdout()
	if err := stdio.Listen(ctx, os.Stdin, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// claimStdout returns the process stdout for the protocol stream and points
// os.Stdout at stderr. ledongthuc/pdf prints parser diagnostics to stdout;
// those must not reach the JSON-RPC stream.
func claimStdout() *os.File {
	out := os.Stdout
	os.Stdout = os.Stderr
	return out
}
