package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-specform/internal/rules"
)

const (
	// Transport constants
	TransportStdio  = "stdio"
	TransportServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultVariant     = rules.VariantCompanyForm
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix is prepended to every environment variable
	EnvPrefix = "SPECFORM"
)

// Config holds all configuration for the converter
type Config struct {
	// Transport configuration
	Transport string // "server" or "stdio"
	Host      string
	Port      int
	Origins   []string

	// Conversion configuration
	WorkDirectory   string // MCP tools read PDFs from here
	OutputDirectory string // produced documents are written here
	Variant         string
	ResourceRoot    string // empty means resolve at startup
	RulesFile       string // empty means the embedded table
	PreserveRuns    bool

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Transport:       TransportStdio, // Default to stdio for MCP compatibility
		Host:            DefaultHost,
		Port:            DefaultPort,
		Origins:         []string{"*"},
		WorkDirectory:   currentDir,
		OutputDirectory: currentDir,
		Variant:         DefaultVariant,
		Version:         "1.0.0",
		ServerName:      "mcp-specform",
		LogLevel:        DefaultLogLevel,
		MaxFileSize:     DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	loadDotEnv()

	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)
	expandPaths(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv reads a .env file from the working directory when present.
// Variables already set in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("transport", cfg.Transport)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("origins", cfg.Origins)
	viper.SetDefault("dir", cfg.WorkDirectory)
	viper.SetDefault("output", cfg.OutputDirectory)
	viper.SetDefault("variant", cfg.Variant)
	viper.SetDefault("resources", cfg.ResourceRoot)
	viper.SetDefault("rules", cfg.RulesFile)
	viper.SetDefault("preserve-runs", cfg.PreserveRuns)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("transport", cfg.Transport, "Transport: 'stdio' for MCP standard I/O, 'server' for the HTTP upload API")
	pflag.String("host", cfg.Host, "Server host address (server transport only)")
	pflag.Int("port", cfg.Port, "Server port (server transport only)")
	pflag.StringSlice("origins", cfg.Origins, "Allowed CORS origins (server transport only)")
	pflag.String("dir", cfg.WorkDirectory, "Directory MCP tools read PDF files from")
	pflag.String("output", cfg.OutputDirectory, "Directory converted documents are written to")
	pflag.String("variant", cfg.Variant, "Deployment variant: 'company_form' or 'spec'")
	pflag.String("resources", cfg.ResourceRoot, "Directory holding templates/ (default: executable dir, else working dir)")
	pflag.String("rules", cfg.RulesFile, "Rule table YAML file (default: embedded table for the variant)")
	pflag.Bool("preserve-runs", cfg.PreserveRuns, "Keep run formatting when a change fits inside one run")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"transport", "host", "port", "origins", "dir", "output", "variant",
		"resources", "rules", "preserve-runs", "loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSpecform - converts vendor specification PDFs into company form documents\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          "+
			"# MCP over stdio, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/srv/specs --output=/srv/forms     "+
			"# MCP with custom directories\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --transport=server --variant=spec         # HTTP upload API\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --transport=server --host=0.0.0.0 --port=8081\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables (also read from .env):\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_TRANSPORT      Transport\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_HOST           Server host\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_PORT           Server port\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_ORIGINS        Allowed CORS origins\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_DIR            PDF work directory\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_OUTPUT         Output directory\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_VARIANT        Deployment variant\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_RESOURCES      Resource root\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_RULES          Rule table file\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_PRESERVE_RUNS  Keep run formatting\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_LOGLEVEL       Log level\n")
		fmt.Fprintf(os.Stderr, "  SPECFORM_MAXFILESIZE    Maximum file size\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Transport = viper.GetString("transport")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.Origins = viper.GetStringSlice("origins")
	cfg.WorkDirectory = viper.GetString("dir")
	cfg.OutputDirectory = viper.GetString("output")
	cfg.Variant = viper.GetString("variant")
	cfg.ResourceRoot = viper.GetString("resources")
	cfg.RulesFile = viper.GetString("rules")
	cfg.PreserveRuns = viper.GetBool("preserve-runs")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// expandPaths makes every configured path absolute
func expandPaths(cfg *Config) {
	for _, p := range []*string{&cfg.WorkDirectory, &cfg.OutputDirectory, &cfg.ResourceRoot, &cfg.RulesFile} {
		if *p == "" {
			continue
		}
		if expanded, err := filepath.Abs(*p); err == nil {
			*p = expanded
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Transport != TransportStdio && c.Transport != TransportServer {
		return errors.New("transport must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server transport)
	if c.Transport == TransportServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if !rules.IsKnownVariant(c.Variant) {
		return fmt.Errorf("invalid variant: %s (must be one of: %s)", c.Variant, strings.Join(rules.Variants, ", "))
	}

	if c.WorkDirectory == "" {
		return errors.New("work directory cannot be empty")
	}
	if c.OutputDirectory == "" {
		return errors.New("output directory cannot be empty")
	}

	// Create the directories if they don't exist
	for _, dir := range []string{c.WorkDirectory, c.OutputDirectory} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", dir, err)
			}
		} else if err != nil {
			return fmt.Errorf("cannot access directory %s: %w", dir, err)
		}
	}

	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); err != nil {
			return fmt.Errorf("cannot access rule table %s: %w", c.RulesFile, err)
		}
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Transport: %s, Host: %s, Port: %d, Variant: %s, WorkDirectory: %s, "+
		"OutputDirectory: %s, ResourceRoot: %s, RulesFile: %s, PreserveRuns: %t, LogLevel: %s, MaxFileSize: %d}",
		c.Transport, c.Host, c.Port, c.Variant, c.WorkDirectory, c.OutputDirectory,
		c.ResourceRoot, c.RulesFile, c.PreserveRuns, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the HTTP upload API is served
func (c *Config) IsServerMode() bool {
	return c.Transport == TransportServer
}

// IsStdioMode returns true if MCP is served over standard I/O
func (c *Config) IsStdioMode() bool {
	return c.Transport == TransportStdio
}
