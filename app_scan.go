package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/dispatch"
	"github.com/thirukguru/aws-account-assessment/shared/spinner"
)

// scanCommands maps scan subcommands to assessment types.
var scanCommands = map[string]model.AssessmentType{
	"delegated-admins":        model.AssessmentDelegatedAdmin,
	"trusted-services":        model.AssessmentTrustedAccess,
	"resource-based-policies": model.AssessmentResourceBasedPolicy,
	"policy-explorer":         model.AssessmentPolicyExplorer,
}

func scanCommandNames() string {
	names := make([]string, 0, len(scanCommands))
	for name := range scanCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// runScanCommand runs one assessment end to end on the in-process engine and
// prints the finished job.
func runScanCommand(ctx context.Context, app *application, args []string, stdin io.Reader, out io.Writer, format string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: aws-account-assessment scan <%s> [request.json|-]", scanCommandNames())
	}
	assessmentType, ok := scanCommands[args[0]]
	if !ok {
		return fmt.Errorf("unsupported scan: %s (valid: %s)", args[0], scanCommandNames())
	}
	req, err := readScanRequest(args[1:], stdin)
	if err != nil {
		return err
	}

	s, err := app.loadScanners(ctx, true)
	if err != nil {
		return err
	}
	strategy, err := dispatch.StrategyFor(assessmentType, s.strategies...)
	if err != nil {
		return err
	}

	spinner.StartSpinner(fmt.Sprintf("Running %s scan...", args[0]))
	job, err := s.runner.Run(ctx, strategy, req, startedBy())
	if err == nil && !strategy.Synchronous() {
		spinner.UpdateSpinner(fmt.Sprintf("Scanning accounts for job %s...", job.JobID))
		s.engine.Wait()
	}
	spinner.StopSpinner()
	if err != nil {
		return err
	}

	return printJobDetails(ctx, app, job.AssessmentType, job.JobID, out, format)
}

// readScanRequest reads the optional request body: a file path, or "-" for stdin.
// Without an argument every account, service and region is scanned.
func readScanRequest(args []string, stdin io.Reader) (model.ScanRequest, error) {
	var req model.ScanRequest
	if len(args) == 0 {
		return req, nil
	}

	var in io.Reader = stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return req, fmt.Errorf("failed to open scan request: %w", err)
		}
		defer f.Close()
		in = f
	}
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode scan request: %w", err)
	}
	return req, nil
}
