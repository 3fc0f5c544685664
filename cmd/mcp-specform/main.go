package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/mcp-specform/internal/config"
	"github.com/a3tai/mcp-specform/internal/convert"
	"github.com/a3tai/mcp-specform/internal/httpapi"
	"github.com/a3tai/mcp-specform/internal/mcp"
	"github.com/a3tai/mcp-specform/internal/rules"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the transport
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol; logs go to stderr in debug only
		log.SetOutput(os.Stderr)
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// newService loads the rule table and builds the conversion service. The
// resource root is resolved here, once.
func newService(cfg *config.Config) (*convert.Service, error) {
	table, err := rules.Load(cfg.RulesFile, cfg.Variant)
	if err != nil {
		return nil, err
	}
	catalog, err := rules.Compile(table)
	if err != nil {
		return nil, err
	}

	root := convert.ResolveResourceRoot(cfg.ResourceRoot, table.Template)
	svc, err := convert.NewService(catalog, convert.Options{
		ResourceRoot: root,
		PreserveRuns: cfg.PreserveRuns,
		MaxFileSize:  cfg.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	if err := svc.CheckTemplate(); err != nil {
		log.Printf("Warning: %v", err)
	}
	return svc, nil
}

// runServerMode serves the HTTP API until a shutdown signal arrives
func runServerMode(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, svc *convert.Service) {
	if !cfg.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(cfg, svc)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- httpapi.Serve(ctx, cfg, router)
	}()

	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode serves MCP tools until stdin closes
func runStdioMode(ctx context.Context, cfg *config.Config, svc *convert.Service) {
	server, err := mcp.NewServer(cfg, svc)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	svc, err := newService(cfg)
	if err != nil {
		log.Fatalf("Failed to create conversion service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, cfg, svc)
	} else {
		runStdioMode(ctx, cfg, svc)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP Specform\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
