package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-specform/internal/batch"
	"github.com/a3tai/mcp-specform/internal/config"
	"github.com/a3tai/mcp-specform/internal/convert"
	"github.com/a3tai/mcp-specform/internal/rules"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// options are the batch command line settings
type options struct {
	dir          string
	output       string
	mode         string
	product      string
	variant      string
	resources    string
	rules        string
	manifest     string
	preserveRuns bool
	limit        int
	maxFileSize  int64
	verbose      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the batch command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := pflag.NewFlagSet("specform-batch", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dir, "dir", ".", "Directory containing specification PDFs")
	fs.StringVar(&opts.output, "output", "", "Directory for converted documents (default: <dir>/converted)")
	fs.StringVar(&opts.mode, "mode", "", "Specification layout of every PDF: CFF, HP or HPD (required)")
	fs.StringVar(&opts.product, "product", "", "Product name for every file (default: each file's name without extension)")
	fs.StringVar(&opts.variant, "variant", config.DefaultVariant, "Deployment variant: 'company_form' or 'spec'")
	fs.StringVar(&opts.resources, "resources", "", "Directory holding templates/ (default: executable dir, else working dir)")
	fs.StringVar(&opts.rules, "rules", "", "Rule table YAML file (default: embedded table for the variant)")
	fs.StringVar(&opts.manifest, "manifest", "manifest.xlsx", "Manifest file name, written to the output directory")
	fs.BoolVar(&opts.preserveRuns, "preserve-runs", false, "Keep run formatting when a change fits inside one run")
	fs.IntVar(&opts.limit, "limit", 0, "Maximum number of PDFs to convert (0 = all)")
	fs.Int64Var(&opts.maxFileSize, "maxfilesize", config.DefaultMaxFileSize, "Maximum PDF file size in bytes")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Log each conversion")
	showVersion := fs.Bool("version", false, "Print version information")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: specform-batch --mode=<CFF|HP|HPD> [OPTIONS]\n\n")
		fmt.Fprintf(stderr, "Converts every PDF in a directory and writes a manifest workbook.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  specform-batch --dir=incoming --mode=HP\n")
		fmt.Fprintf(stderr, "  specform-batch --dir=incoming --mode=CFF --product=\"ROSE OIL\" --output=forms\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	if *showVersion {
		printVersion(stdout)
		return 0
	}

	if opts.verbose {
		log.SetOutput(stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	opts.mode = strings.ToUpper(strings.TrimSpace(opts.mode))
	if opts.mode == "" {
		fmt.Fprintf(stderr, "Error: --mode is required\n\n")
		fs.Usage()
		return 1
	}
	if opts.output == "" {
		opts.output = filepath.Join(opts.dir, "converted")
	}

	report, err := convertAll(ctx, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	data, err := batch.Manifest(report)
	if err != nil {
		fmt.Fprintf(stderr, "Error writing manifest: %v\n", err)
		return 1
	}
	manifestPath := filepath.Join(opts.output, opts.manifest)
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		fmt.Fprintf(stderr, "Error writing manifest: %v\n", err)
		return 1
	}

	printReport(stdout, report, manifestPath)
	if report.Failed > 0 {
		return 1
	}
	return 0
}

func convertAll(ctx context.Context, opts options) (*batch.Report, error) {
	table, err := rules.Load(opts.rules, opts.variant)
	if err != nil {
		return nil, err
	}
	catalog, err := rules.Compile(table)
	if err != nil {
		return nil, err
	}

	svc, err := convert.NewService(catalog, convert.Options{
		ResourceRoot: convert.ResolveResourceRoot(opts.resources, table.Template),
		PreserveRuns: opts.preserveRuns,
		MaxFileSize:  opts.maxFileSize,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.CheckTemplate(); err != nil {
		return nil, err
	}

	return batch.NewRunner(svc, opts.maxFileSize).Run(ctx, batch.Options{
		Directory:       opts.dir,
		OutputDirectory: opts.output,
		Mode:            opts.mode,
		Product:         opts.product,
		Limit:           opts.limit,
	})
}

func printReport(w io.Writer, report *batch.Report, manifestPath string) {
	if len(report.Items) == 0 {
		fmt.Fprintf(w, "No PDF files found in directory: %s\n", report.Directory)
	}
	for i, item := range report.Items {
		fmt.Fprintf(w, "%d. %s\n", i+1, filepath.Base(item.File))
		if item.Status == batch.StatusConverted {
			fmt.Fprintf(w, "   -> %s\n", item.Output)
		} else {
			fmt.Fprintf(w, "   FAILED: %s\n", item.Error)
		}
	}
	fmt.Fprintf(w, "\nConverted: %d, Failed: %d\n", report.Converted, report.Failed)
	fmt.Fprintf(w, "Manifest: %s\n", manifestPath)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Specform Batch\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
