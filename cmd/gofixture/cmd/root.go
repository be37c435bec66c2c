package cmd

import (
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofixture/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile     string
	logLevel    string
	logFormat   string
	outputDir   string
	deduplicate bool
	maxDepth    int
	indent      int
	skipVerify  bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "gofixture",
	Short: "Relational fixture extractor",
	Long: `Extract the complete dependency closure of database records into
JSON fixture documents, and load them back into another database.

Features:
  - Reflected walks follow every foreign key and many-to-many relation,
    in both directions, from a root record
  - Declared walks follow a YAML schema of models and filter keys
  - Schemas come from a models file or from database introspection
    (MySQL, PostgreSQL, SQLite)
  - Loading orders rows parent-first using Kahn's algorithm
  - Round-trip verification (count and SHA256)`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.Enable = false
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "gofixture.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Extraction overrides
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "",
		"Override the directory fixture documents are written to")
	rootCmd.PersistentFlags().BoolVar(&deduplicate, "dedupe", false,
		"Drop repeated entries from written documents")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 0,
		"Override the maximum walk depth (0 = unlimited)")
	rootCmd.PersistentFlags().IntVar(&indent, "indent", 0,
		"Override the JSON indentation width")

	// Safety overrides
	rootCmd.PersistentFlags().BoolVar(&skipVerify, "skip-verify", false,
		"Skip data verification after load")

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel    string
	LogFormat   string
	OutputDir   string
	Deduplicate bool
	MaxDepth    int
	Indent      int
	SkipVerify  bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		OutputDir:   outputDir,
		Deduplicate: deduplicate,
		MaxDepth:    maxDepth,
		Indent:      indent,
		SkipVerify:  skipVerify,
	}
}

// Config converts the flag values to config overrides.
func (o CLIOverrides) Config() config.Overrides {
	return config.Overrides{
		LogLevel:    o.LogLevel,
		LogFormat:   o.LogFormat,
		OutputDir:   o.OutputDir,
		Deduplicate: o.Deduplicate,
		MaxDepth:    o.MaxDepth,
		Indent:      o.Indent,
		SkipVerify:  o.SkipVerify,
	}
}
