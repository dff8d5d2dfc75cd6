// Package dispatch starts assessment jobs: it guards against concurrent scans of
// one type, creates the job and its marker, and runs the scan strategy.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/finisher"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// AssessmentRunner runs strategies under the job lifecycle.
type AssessmentRunner struct {
	jobs     jobs.Service
	finisher finisher.Service
	now      func() time.Time
	logger   *slog.Logger
}

// NewAssessmentRunner creates an AssessmentRunner.
func NewAssessmentRunner(jobRepo jobs.Service, fin finisher.Service, opts ...RunnerOption) *AssessmentRunner {
	r := &AssessmentRunner{jobs: jobRepo, finisher: fin, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrDefault(r.logger).With("component", "dispatch")
	return r
}

// Run starts a job of the strategy's assessment type. Synchronous scans return the
// finished job, asynchronous ones the ACTIVE job.
func (r *AssessmentRunner) Run(ctx context.Context, strategy Strategy, req model.ScanRequest, startedBy string) (model.Job, error) {
	assessmentType := strategy.AssessmentType()

	running, err := r.jobs.InProgress(ctx, assessmentType)
	if err != nil {
		return model.Job{}, err
	}
	if running {
		return model.Job{}, apperror.Conflict("Scan running",
			fmt.Sprintf("Cannot start another scan of type %s while there is already a scan of this type running.", assessmentType))
	}

	job, err := r.jobs.CreateJob(ctx, model.JobCreateRequest{
		AssessmentType: assessmentType,
		StartedAt:      model.Timestamp(r.now()),
		StartedBy:      startedBy,
		JobStatus:      model.JobStatusActive,
	})
	if err != nil {
		return model.Job{}, err
	}
	if _, err := r.jobs.PutLastJobMarker(ctx, job); err != nil {
		return model.Job{}, err
	}
	logger := r.logger.With("job_id", job.JobID, "assessment_type", assessmentType)
	logger.Info("job started", "started_by", startedBy)

	if err := strategy.Scan(ctx, job.JobID, req); err != nil {
		logger.Error("scan failed", "error", err)
		r.fail(ctx, job, err)
		return model.Job{}, err
	}

	if !strategy.Synchronous() {
		return job, nil
	}
	if _, err := r.finisher.Finish(ctx, model.FinishRequest{
		AssessmentType: assessmentType,
		JobID:          job.JobID,
		Result:         string(model.JobStatusSucceeded),
	}); err != nil {
		return model.Job{}, err
	}
	return r.jobs.GetJob(ctx, assessmentType, job.JobID)
}

// fail finishes the job FAILED even when ctx is already cancelled.
func (r *AssessmentRunner) fail(ctx context.Context, job model.Job, cause error) {
	req := model.FinishRequest{AssessmentType: job.AssessmentType, JobID: job.JobID, Result: model.ResultFailed}
	if appErr, ok := apperror.As(cause); ok && appErr.Kind != apperror.KindInternal {
		req.Error = appErr.Title + " " + appErr.Message
	}
	if _, err := r.finisher.Finish(context.WithoutCancel(ctx), req); err != nil {
		r.logger.Error("failed to finish failed job", "job_id", job.JobID, "error", err)
	}
}
