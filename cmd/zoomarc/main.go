package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/zoomarc/zoomarc/internal/config"
	"github.com/zoomarc/zoomarc/internal/discovery"
	"github.com/zoomarc/zoomarc/internal/diskspace"
	"github.com/zoomarc/zoomarc/internal/logging"
	"github.com/zoomarc/zoomarc/internal/naming"
	"github.com/zoomarc/zoomarc/internal/progress"
	"github.com/zoomarc/zoomarc/internal/runner"
	"github.com/zoomarc/zoomarc/internal/transfer"
	"github.com/zoomarc/zoomarc/internal/users"
	"github.com/zoomarc/zoomarc/internal/zoom"
)

var (
	// Version information - will be set during build
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	outputDir  string
	fromDate   string
	toDate     string
	verbose    bool
	dryRun     bool
	limit      int
	noProgress bool
)

// buildRootCommand creates and configures the root command
func buildRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zoomarc",
		Short: "A CLI tool to archive Zoom cloud recordings",
		Long: `zoomarc connects to the Zoom API and archives cloud recordings to
local storage, organized by user and topic.

This tool helps you:
- Download every selected user's cloud recordings for a date range
- Resume interrupted runs: completed files are skipped, partial ones replaced
- Keep a configurable amount of disk space free while downloading
- Organize files into predictable, filesystem-safe folder and file names`,
		Run: func(cmd *cobra.Command, args []string) {
			configPath := "config.yaml"
			if configFile != "" {
				configPath = configFile
			}

			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runArchive(ctx, cmd, cfg); err != nil {
				if errors.Is(err, context.Canceled) {
					cmd.Printf("\nInterrupted.\n")
					os.Exit(130)
				}
				cmd.Printf("❌ Archive run failed: %v\n", err)
				os.Exit(1)
			}
		},
	}

	// Add subcommands
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path (default: config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "base archive directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&fromDate, "from", "", "range start, YYYY-MM-DD or YYYY-MM (overrides config)")
	rootCmd.PersistentFlags().StringVar(&toDate, "to", "", "range end, YYYY-MM-DD or YYYY-MM (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would be downloaded without downloading")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 0, "stop after N downloads (0 = no limit)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bars")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if limit < 0 {
			return fmt.Errorf("limit must be a positive number or 0, got: %d", limit)
		}
		return nil
	}

	return rootCmd
}

// loadConfig loads and validates configuration, printing guidance on failure
func loadConfig(cmd *cobra.Command, configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err == nil {
		applyFlagOverrides(cfg)
		return cfg, nil
	}

	cmd.Printf("⚠️  Configuration Issue Detected\n\n")

	if strings.Contains(err.Error(), "failed to read config file") {
		cmd.Printf("Configuration file '%s' not found.\n\n", configPath)
		cmd.Printf("To get started:\n")
		cmd.Printf("1. Run 'zoomarc config' to see the configuration structure\n")
		cmd.Printf("2. Create config.yaml with your Zoom credentials and date range\n")
		cmd.Printf("3. Run 'zoomarc' to start archiving\n\n")
	} else {
		cmd.Printf("Configuration error: %v\n\n", err)
		cmd.Printf("Run 'zoomarc config' to see the correct configuration structure.\n\n")
	}

	hasEnvCreds := os.Getenv("ZOOM_ACCOUNT_ID") != "" &&
		os.Getenv("ZOOM_CLIENT_ID") != "" &&
		os.Getenv("ZOOM_CLIENT_SECRET") != ""
	if !hasEnvCreds {
		cmd.Printf("💡 Credentials can also come from environment variables or a .env file:\n")
		cmd.Printf("   export ZOOM_ACCOUNT_ID='your-account-id'\n")
		cmd.Printf("   export ZOOM_CLIENT_ID='your-client-id'\n")
		cmd.Printf("   export ZOOM_CLIENT_SECRET='your-client-secret'\n\n")
	}

	return nil, err
}

// applyFlagOverrides layers command line flags over the loaded configuration
func applyFlagOverrides(cfg *config.Config) {
	if outputDir != "" {
		cfg.Download.OutputDir = outputDir
	}
	if fromDate != "" {
		cfg.Range.From = fromDate
	}
	if toDate != "" {
		cfg.Range.To = toDate
	}
	if verbose {
		cfg.Run.Verbose = true
	}
}

// runArchive wires the components together and executes one run
func runArchive(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Close()
	if cfg.Run.Verbose {
		logger.SetLevel(logging.DebugLevel)
	}

	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	logger.InfoWithContext(ctx, "zoomarc %s starting", version)

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.Download.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	auth := zoom.NewTokenManager(cfg.Zoom)
	retryClient := zoom.NewRetryHTTPClient(zoom.HTTPClientConfigFromDownloadConfig(cfg.Download))
	client := zoom.NewZoomClient(retryClient, auth, cfg.Zoom.BaseURL)

	selector, err := users.NewSelector(cfg.Filters)
	if err != nil {
		return err
	}
	defer selector.Close()

	gate := diskspace.NewGate(cfg.Download.OutputDir, cfg.MinimumFreeBytes(), cfg.Disk)
	gate.SetLogf(logger.Info)

	var reporter progress.Reporter = progress.NewNoopReporter()
	if !noProgress && !dryRun {
		reporter = progress.NewConsoleReporter()
	}

	run := runner.NewRunner(runner.Deps{
		Config:     cfg,
		Client:     client,
		Selector:   selector,
		Discoverer: discovery.NewDiscoverer(client, cfg.Filters, cfg.Download.PageSize),
		Resolver:   naming.NewResolver(fs, cfg.Download.OutputDir, cfg.Naming),
		Transfers:  transfer.NewManager(fs, client, cfg.SizeToleranceBytes()),
		Gate:       gate,
		Reporter:   reporter,
		Logger:     logger,
	}, runner.Options{
		DryRun: dryRun,
		Limit:  limit,
	})

	counters, err := run.Run(ctx)
	if err != nil {
		return err
	}

	if dryRun {
		cmd.Printf("Dry run: %d files would be downloaded (%d already archived)\n",
			counters.FilesPlanned, counters.FilesSkipped)
	} else {
		cmd.Printf("Done: %d files downloaded (%s), %d skipped, %d users processed\n",
			counters.FilesDownloaded, diskspace.SizeToString(counters.BytesDownloaded),
			counters.FilesSkipped, counters.UsersProcessed)
	}

	return nil
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version, commit, and build information for zoomarc",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("zoomarc version %s\n", version)
			cmd.Printf("Commit: %s\n", commit)
			cmd.Printf("Build date: %s\n", buildDate)
		},
	}
}

// createConfigCommand creates the config help subcommand
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration file structure and examples",
		Long:  "Display the required configuration file structure, authentication methods, environment variables, and examples",
		Run: func(cmd *cobra.Command, args []string) {
			configHelp := `Configuration File Structure (config.yaml):

ZOOM API CONFIGURATION (Required):
=================================
zoom:
  account_id: "your_zoom_account_id"       # Account ID from Server-to-Server OAuth app
  client_id: "your_zoom_client_id"         # Client ID from Server-to-Server OAuth app
  client_secret: "your_zoom_client_secret" # Client Secret from Server-to-Server OAuth app
  base_url: "https://api.zoom.us/v2"       # API base URL (default)
  oauth_url: "https://zoom.us/oauth/token" # Token endpoint (default)
  auth_method: "oauth"                     # "oauth" or legacy "jwt"

# REQUIRED SCOPES: recording:read, user:read, meeting:read

DATE RANGE (Required):
=====================
range:
  from: "2024-01"       # YYYY-MM-DD, or YYYY-MM for a whole month
  to: "2024-03"         # inclusive

USER AND RECORDING FILTERS (Optional):
=====================================
filters:
  users: []                  # emails to archive (empty = every active user)
  exclude_users: []          # emails to always skip
  users_file: ""             # optional file with one email per line
  watch_users_file: false    # reload the file when it changes
  topics: []                 # topics to archive (literal or slug form)
  topic_partial_match: false # substring match on slugs
  file_types: []             # e.g. [MP4, M4A] (empty = all types)

NAMING AND LAYOUT:
=================
naming:
  name_pieces: [topic, start, type]  # pieces of the file name, joined by separator
  separator: "__"
  folder_order: [user, topic]        # folder nesting: user, topic, year_month
  recording_subfolder: false         # extra per-recording-instance folder

DOWNLOAD CONFIGURATION:
======================
download:
  output_dir: "./archive"   # archive root (default: ./archive)
  page_size: 300            # API page size (default: 300)
  retry_attempts: 3         # retries for transient HTTP failures
  timeout_seconds: 300      # per-request timeout
  size_tolerance: "0"       # allowed size difference, e.g. "1KB"

DISK SPACE:
==========
disk:
  minimum_free: "1GB"        # reserve that must stay free
  poll_interval_seconds: 30  # how often to re-check while waiting
  max_wait_seconds: 0        # give up after this long (0 = wait forever)

RUN POLICY:
==========
run:
  on_user_error: "abort"    # "abort" the run or "skip" the failing user
  verbose: false

LOGGING CONFIGURATION:
=====================
logging:
  level: "info"             # debug, info, warn, error
  file: ""                  # optional log file path
  console: true
  json_format: false

ENVIRONMENT VARIABLES:
=====================
ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID, ZOOM_CLIENT_SECRET override zoom.*
ZOOM_BASE_URL, ZOOM_OAUTH_URL override the endpoints
ZOOMARC_OUTPUT_DIR overrides download.output_dir
A .env file in the working directory is loaded automatically.`
			cmd.Println(configHelp)
		},
	}
}

func main() {
	rootCmd := buildRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
