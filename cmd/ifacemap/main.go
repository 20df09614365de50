package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jward/ifacemap"
	"github.com/jward/ifacemap/internal/config"
)

var (
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "ifacemap",
	Short:         "Map Go interfaces to the types that implement them",
	Long:          "ifacemap indexes Go interfaces, methods, and functions from source text and reports which concrete types structurally satisfy which interfaces.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		errorHandled = false
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "snapshot database: written by index and watch, read by query and run")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .ifacemap.yaml in the indexed root)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(runCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a Go source tree",
	Long:  "Scans the tree, extracts declarations, resolves implementations, and prints a summary. With --db the index is also written to a SQLite snapshot.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "index", err)
	}
	engine, _, err := newEngine(root)
	if err != nil {
		return outputError(cmd, "index", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stats, err := engine.Rebuild(ctx)
	if err != nil {
		return outputError(cmd, "index", err)
	}

	result := toCLIIndexStats(root, stats)
	if flagDB != "" {
		dbPath, err := filepath.Abs(flagDB)
		if err != nil {
			return outputError(cmd, "index", err)
		}
		written, err := engine.Export(ctx, dbPath)
		if err != nil {
			return outputError(cmd, "index", err)
		}
		result.Database = dbPath
		result.Written = written
	}

	return outputResult(cmd, CLIResult{Command: "index", Results: result})
}

// newEngine loads configuration for root and builds an Engine from it.
func newEngine(root string, opts ...ifacemap.Option) (*ifacemap.Engine, *config.Config, error) {
	cfg, err := config.Load(root, flagConfig)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logger, err := newLogger(level)
	if err != nil {
		return nil, nil, err
	}

	base := []ifacemap.Option{
		ifacemap.WithPatterns(cfg.Patterns...),
		ifacemap.WithIgnore(cfg.Ignore...),
		ifacemap.WithGit(cfg.UseGit),
		ifacemap.WithConcurrency(cfg.Concurrency),
		ifacemap.WithDebounce(cfg.Debounce),
		ifacemap.WithLogger(logger),
	}
	e, err := ifacemap.New(root, append(base, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}

// newLogger returns a stderr logger at the named level.
func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "ifacemap",
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	}), nil
}

// resolveTargetDir returns the absolute path of the directory to index.
// Without an argument the enclosing repository root is used.
func resolveTargetDir(args []string) (string, error) {
	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting cwd: %w", err)
		}
		return findRepoRoot(cwd), nil
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", args[0], err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
