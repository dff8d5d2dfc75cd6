// Package orchestrator runs asynchronous scans without an external state machine.
package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/awserrors"
	"github.com/thirukguru/aws-account-assessment/service/finisher"
	"github.com/thirukguru/aws-account-assessment/service/scantask"
	"github.com/thirukguru/aws-account-assessment/service/validator"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// NewEngine creates an engine.
func NewEngine(v validator.Service, tasks scantask.Service, fin finisher.Service, opts ...Option) *Engine {
	e := &Engine{
		validator:   v,
		tasks:       tasks,
		finisher:    fin,
		maxParallel: 8,
		maxAttempts: 3,
		backoff:     time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxParallel < 1 {
		e.maxParallel = 1
	}
	if e.maxAttempts < 1 {
		e.maxAttempts = 1
	}
	e.logger = logging.OrDefault(e.logger).With("component", "orchestrator")
	return e
}

// Start runs the scan in the background. The scan outlives ctx cancellation; use Wait to join it.
func (e *Engine) Start(ctx context.Context, input model.ScanStartInput) error {
	bg := context.WithoutCancel(ctx)
	e.running.Add(1)
	go func() {
		defer e.running.Done()
		if _, _, err := e.Run(bg, input); err != nil {
			e.logger.Error("scan failed", "job_id", input.JobID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every scan started with Start has finished.
func (e *Engine) Wait() {
	e.running.Wait()
}

// Run scans input and finishes the job. The returned error is the reason the job
// was finished FAILED, or an error from the finisher itself.
func (e *Engine) Run(ctx context.Context, input model.ScanStartInput) (model.FinishResponse, Summary, error) {
	assessmentType := input.AssessmentType
	if assessmentType == "" {
		assessmentType = model.AssessmentResourceBasedPolicy
	}
	logger := e.logger.With("job_id", input.JobID, "assessment_type", assessmentType)
	started := time.Now()

	summary, scanErr := e.scan(ctx, input.JobID, assessmentType, input.Scan)

	result := string(model.JobStatusSucceeded)
	if scanErr != nil {
		result = model.ResultFailed
	}
	resp, err := e.finisher.Finish(context.WithoutCancel(ctx), model.FinishRequest{
		AssessmentType: assessmentType,
		JobID:          input.JobID,
		Result:         result,
	})
	if err != nil {
		return model.FinishResponse{}, summary, errors.Join(scanErr, err)
	}
	logger.Info("scan finished",
		"status", resp.Status,
		"accounts", summary.Accounts,
		"valid_accounts", summary.ValidAccounts,
		"branches", summary.Branches,
		"failed_branches", summary.FailedBranches,
		"findings", summary.Findings,
		"duration", time.Since(started).String())
	return resp, summary, scanErr
}

type branch struct {
	req    model.ScanServiceRequest
	region string
}

func (e *Engine) scan(ctx context.Context, jobID string, assessmentType model.AssessmentType, scan model.Scan) (Summary, error) {
	summary := Summary{Accounts: len(scan.AccountIDs)}

	validations := make([]model.AccountValidationResponse, len(scan.AccountIDs))
	vg, vctx := errgroup.WithContext(ctx)
	vg.SetLimit(e.maxParallel)
	for i, accountID := range scan.AccountIDs {
		vg.Go(func() error {
			validations[i] = e.validator.CheckAccountAccessPermission(vctx, model.AccountValidationRequest{
				AccountID:      accountID,
				JobID:          jobID,
				AssessmentType: assessmentType,
				ServiceNames:   scan.ServiceNames,
				Regions:        scan.Regions,
			})
			return vctx.Err()
		})
	}
	if err := vg.Wait(); err != nil {
		return summary, err
	}

	var branches []branch
	for i, accountID := range scan.AccountIDs {
		v := validations[i]
		if v.Validation != model.ValidationSucceeded {
			continue
		}
		summary.ValidAccounts++
		for _, serviceName := range v.ServicesToScanForAccount {
			req := model.ScanServiceRequest{
				JobID:          jobID,
				AssessmentType: assessmentType,
				AccountID:      accountID,
				ServiceName:    serviceName,
				Regions:        v.Regions,
			}
			for _, region := range e.tasks.Regions(req) {
				branches = append(branches, branch{req: req, region: region})
			}
		}
	}
	summary.Branches = len(branches)

	var findings, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for _, b := range branches {
		g.Go(func() error {
			count, ok, err := e.runBranch(gctx, b)
			if err != nil {
				return err
			}
			if !ok {
				failed.Add(1)
			}
			findings.Add(int64(count))
			return nil
		})
	}
	err := g.Wait()
	summary.Findings = int(findings.Load())
	summary.FailedBranches = int(failed.Load())
	return summary, err
}

// runBranch scans one region, retrying transient errors. A branch that keeps failing is
// recorded as a task failure and reported with ok=false. Only errors that should stop the
// whole job are returned.
func (e *Engine) runBranch(ctx context.Context, b branch) (int, bool, error) {
	logger := e.logger.With("job_id", b.req.JobID, "account_id", b.req.AccountID, "service", b.req.ServiceName, "region", b.region)

	policy := backoff.WithContext(backoff.WithMaxRetries(e.newBackOff(), uint64(e.maxAttempts-1)), ctx)
	count, err := backoff.RetryNotifyWithData(func() (int, error) {
		count, err := e.tasks.ScanRegion(ctx, b.req, b.region)
		if err != nil && (errors.Is(err, scantask.ErrPersist) || !awserrors.IsTransient(err)) {
			return 0, backoff.Permanent(err)
		}
		return count, err
	}, policy, func(err error, delay time.Duration) {
		logger.Debug("retrying branch", "delay", delay.String(), "error", err)
	})
	if err == nil {
		return count, true, nil
	}
	if errors.Is(err, scantask.ErrPersist) || ctx.Err() != nil {
		return 0, false, err
	}

	logger.Warn("branch failed", "error", err)
	if err := e.tasks.RecordFailure(ctx, b.req, b.region, err); err != nil {
		return 0, false, err
	}
	return 0, false, nil
}

// newBackOff doubles the delay on every retry, starting at the configured backoff.
func (e *Engine) newBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(e.backoff),
		backoff.WithRandomizationFactor(0),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(time.Minute),
		backoff.WithMaxElapsedTime(0),
	)
}
