package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/api"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/shared/tables"
)

func runServe(ctx context.Context, app *application) error {
	s, err := app.loadScanners(ctx, false)
	if err != nil {
		return err
	}
	server := api.NewServer(api.Dependencies{
		Jobs:       app.jobs,
		Findings:   app.findings,
		Configs:    app.configs,
		Runner:     s.runner,
		Strategies: s.strategies,
		Metrics:    app.metrics,
		Logger:     app.logger,
	}).HTTPServer(app.cfg.HTTPAddr)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	app.logger.Info("api listening", "addr", app.cfg.HTTPAddr, "store", app.cfg.Store.Backend)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// runTaskCommand runs one orchestration step: the task event is read from in and
// the task output is written to out.
func runTaskCommand(ctx context.Context, app *application, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: aws-account-assessment task <validate|scan|finish> < event.json")
	}

	switch args[0] {
	case "finish":
		return runTask(in, out, func(req model.FinishRequest) (model.FinishResponse, error) {
			return app.finisher.Finish(ctx, req)
		})
	case "validate":
		s, err := app.loadScanners(ctx, true)
		if err != nil {
			return err
		}
		return runTask(in, out, func(req model.AccountValidationRequest) (model.AccountValidationResponse, error) {
			return s.validator.CheckAccountAccessPermission(ctx, req), nil
		})
	case "scan":
		s, err := app.loadScanners(ctx, true)
		if err != nil {
			return err
		}
		return runTask(in, out, func(req model.ScanServiceRequest) (model.ScanServiceResponse, error) {
			return s.tasks.Run(ctx, req)
		})
	default:
		return fmt.Errorf("unsupported task: %s", args[0])
	}
}

func runTask[Req, Resp any](in io.Reader, out io.Writer, fn func(Req) (Resp, error)) error {
	var req Req
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode task event: %w", err)
	}
	resp, err := fn(req)
	if err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(resp)
}

func runJobsCommand(ctx context.Context, app *application, args []string, out io.Writer, format string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "list":
		all, err := app.jobs.FindAllJobs(ctx)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSONTo(out, all)
		}
		tables.DrawJobsTable(out, all)
		return nil
	case "show":
		if len(args) < 3 {
			return fmt.Errorf("usage: aws-account-assessment jobs show <assessment-type> <job-id>")
		}
		assessmentType := model.AssessmentType(args[1])
		if !assessmentType.Valid() {
			return fmt.Errorf("invalid assessment type %q", args[1])
		}
		return printJobDetails(ctx, app, assessmentType, args[2], out, format)
	default:
		return fmt.Errorf("unsupported jobs command: %s", sub)
	}
}

func printJobDetails(ctx context.Context, app *application, assessmentType model.AssessmentType, jobID string, out io.Writer, format string) error {
	job, err := app.jobs.GetJob(ctx, assessmentType, jobID)
	if err != nil {
		return err
	}
	failures, err := app.jobs.FindTaskFailuresByJobID(ctx, jobID)
	if err != nil {
		return err
	}
	rows, err := app.findings.FindByJobID(ctx, assessmentType, jobID)
	if err != nil {
		return err
	}
	details := model.JobDetails{Job: job, Findings: rows, TaskFailures: failures}
	if format == "json" {
		return writeJSONTo(out, details)
	}
	tables.DrawJobDetails(out, details)
	return nil
}

func runDBCommand(ctx context.Context, app *application, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: aws-account-assessment db <purge|vacuum>")
	}
	store, ok := app.table.(storage.Maintainer)
	if !ok {
		return fmt.Errorf("db %s needs the sqlite store (rows expire through the table TTL otherwise)", args[0])
	}

	switch args[0] {
	case "purge":
		count, err := store.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Purged %d expired rows\n", count)
		return nil
	case "vacuum":
		return store.Vacuum(ctx)
	default:
		return fmt.Errorf("unsupported db command: %s", args[0])
	}
}

func printVersion(out io.Writer, format string, info model.VersionInfo) error {
	if format == "json" {
		return writeJSONTo(out, info)
	}
	_, err := fmt.Fprintf(out, "aws-account-assessment %s (commit %s, built %s)\n", info.Version, info.Commit, info.Date)
	return err
}

func writeJSONTo(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// startedBy names the local user for jobs started from the CLI.
func startedBy() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if name := os.Getenv(key); name != "" {
			return name
		}
	}
	return "cli"
}
