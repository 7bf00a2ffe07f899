package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"headswap/internal/batch"
	"headswap/internal/cache"
	"headswap/internal/config"
)

var version string = "<dev>"

// parseLogLevel converts a string log level to zerolog.Level
func parseLogLevel(logger zerolog.Logger, level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		logger.Warn().Str("level", level).Msg("Invalid log level, defaulting to info")
		return zerolog.InfoLevel
	}
}

type options struct {
	configFile string
	logLevel   string

	inputDir   string
	headerFile string
	selector   string
	extensions []string
	format     string
	backupDir  string
	dryRun     bool
	failFast   bool
	redisAddr  string
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
}

func newRootCmd(base zerolog.Logger) *cobra.Command {
	cmd, _ := buildRootCmd(base)
	return cmd
}

// buildRootCmd returns the root command and the options its flags bind to.
func buildRootCmd(base zerolog.Logger) (*cobra.Command, *options) {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "headswap",
		Short: "Replace the head section of every document in a directory",
		Long: `headswap walks an input directory, backs it up, and replaces the element
matched by a selector (the <head> by default) in every matching document with
the contents of a canonical header file.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := base.Level(parseLogLevel(base, opts.logLevel))

			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "Path to a JSON or YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVarP(&opts.inputDir, "input", "i", "", "Directory of documents to rewrite (default \"input\")")
	flags.StringVar(&opts.headerFile, "header", "", "File holding the replacement element (default \"header.html\")")
	flags.StringVarP(&opts.selector, "selector", "s", "", "Element to replace, e.g. head or div#top.banner (default \"head\")")
	flags.StringSliceVarP(&opts.extensions, "ext", "e", nil, "File extensions to process (default .htm)")
	flags.StringVar(&opts.format, "format", "", "Markup format: auto, html or xml (default \"auto\")")
	flags.StringVar(&opts.backupDir, "backup-dir", "", "Directory to hold the timestamped backup (default: next to the input)")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "Report what would change without writing or backing up")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "Stop at the first file that fails")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the rewrite cache (disabled when empty)")

	return cmd, opts
}

// loadConfig reads the configuration file, if any, and applies the flags
// the user set on top of it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputDir = opts.inputDir
	}
	if flags.Changed("header") {
		cfg.HeaderFile = opts.headerFile
	}
	if flags.Changed("selector") {
		cfg.Selector = opts.selector
	}
	if flags.Changed("ext") {
		cfg.Extensions = opts.extensions
	}
	if flags.Changed("format") {
		cfg.Format = opts.format
	}
	if flags.Changed("backup-dir") {
		cfg.BackupDir = opts.backupDir
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = opts.failFast
	}
	if flags.Changed("redis-addr") {
		cfg.Redis.Addr = opts.redisAddr
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	runOpts := []batch.Option{batch.WithLogger(logger)}

	if cfg.Redis.Enabled() {
		c, err := cache.New(ctx, cfg.Redis, cfg.CacheTTL())
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Cache unavailable, continuing without it")
		} else {
			defer c.Close()
			runOpts = append(runOpts, batch.WithCache(c))
			logger.Debug().Str("addr", cfg.Redis.Addr).Msg("Connected to cache")
		}
	}

	runner, err := batch.New(cfg, runOpts...)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", version).
		Str("input", cfg.InputDir).
		Str("header", cfg.HeaderFile).
		Str("selector", cfg.Selector).
		Bool("dry_run", cfg.DryRun).
		Msg("Starting run")

	report, err := runner.Run(ctx)
	logger.Info().
		Int("files", report.Files).
		Int("rewritten", report.Count(batch.Rewritten)).
		Int("unchanged", report.Count(batch.Unchanged)).
		Int("no_match", report.Count(batch.NoMatch)).
		Int("cached", report.Count(batch.Cached)).
		Int("failed", report.Count(batch.Failed)).
		Str("backup", report.BackupDir).
		Msg("Run finished")
	return err
}
