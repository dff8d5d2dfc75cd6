// Package main is the entry point for the aws-account-assessment application.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/thirukguru/aws-account-assessment/config"
	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/flag"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `usage: aws-account-assessment [flags] <command>

commands:
  serve                             start the HTTP API
  scan <delegated-admins|trusted-services|resource-based-policies|policy-explorer> [request.json|-]
  task <validate|scan|finish>       run one orchestration task (event JSON on stdin)
  jobs [list|show <type> <job-id>]  print jobs
  db <purge|vacuum>                 maintain the sqlite store
  version`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags, err := flag.NewService().GetParsedFlags()
	if err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if len(flags.Args) == 0 {
		return fmt.Errorf("%s", usage)
	}

	versionInfo := model.VersionInfo{Version: version, Commit: commit, Date: date}
	if flags.Args[0] == "version" {
		return printVersion(os.Stdout, flags.Output, versionInfo)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(&cfg, flags)
	if cfg.Metrics.SolutionVersion == "dev" && version != "dev" {
		cfg.Metrics.SolutionVersion = version
	}

	// The API logs to stdout. Every other command keeps stdout for its output.
	var logOut io.Writer = os.Stderr
	if flags.Args[0] == "serve" {
		logOut = os.Stdout
	}
	logger := logging.InitLoggerTo(logOut, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return runCommand(ctx, app, flags)
}

func runCommand(ctx context.Context, app *application, flags model.Flags) error {
	args := flags.Args
	switch args[0] {
	case "serve":
		return runServe(ctx, app)
	case "scan":
		return runScanCommand(ctx, app, args[1:], os.Stdin, os.Stdout, flags.Output)
	case "task":
		return runTaskCommand(ctx, app, args[1:], os.Stdin, os.Stdout)
	case "jobs":
		return runJobsCommand(ctx, app, args[1:], os.Stdout, flags.Output)
	case "db":
		return runDBCommand(ctx, app, args[1:], os.Stdout)
	default:
		return fmt.Errorf("unsupported command: %s\n%s", args[0], usage)
	}
}

// applyFlags lets command line flags override the environment.
func applyFlags(cfg *config.Config, flags model.Flags) {
	if flags.Profile != "" {
		cfg.AWS.Profile = flags.Profile
	}
	if flags.Region != "" {
		cfg.AWS.Region = flags.Region
	}
	if flags.StoreBackend != "" {
		backend := cfg.Store.Backend
		if err := backend.UnmarshalText([]byte(flags.StoreBackend)); err == nil {
			cfg.Store.Backend = backend
		} else {
			slog.Warn("ignoring --store", "error", err)
		}
	}
	if flags.SQLitePath != "" {
		cfg.Store.SQLitePath = flags.SQLitePath
	}
	if flags.Table != "" {
		cfg.Store.Table = flags.Table
	}
	if flags.HTTPAddr != "" {
		cfg.HTTPAddr = flags.HTTPAddr
	}
	if flags.MaxParallel > 0 {
		cfg.Orchestration.MaxParallelBranches = flags.MaxParallel
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
}
