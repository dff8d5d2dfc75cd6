// Package finisher writes the terminal status of a job and its marker.
package finisher

import (
	"context"
	"fmt"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// NewService creates a finisher.
func NewService(jobRepo jobs.Service, findingRepo findings.Service, opts ...Option) Service {
	s := &service{
		jobs:     jobRepo,
		findings: findingRepo,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With("component", "finisher")
	return s
}

// Status derives the terminal status from the orchestrator result and the number of task failures.
func Status(result string, failures int) model.JobStatus {
	switch {
	case result == model.ResultFailed:
		return model.JobStatusFailed
	case failures > 0:
		return model.JobStatusSucceededWithFailedTasks
	default:
		return model.JobStatusSucceeded
	}
}

func (s *service) Finish(ctx context.Context, req model.FinishRequest) (model.FinishResponse, error) {
	logger := s.logger.With("job_id", req.JobID, "assessment_type", req.AssessmentType)

	job, err := s.jobs.GetJob(ctx, req.AssessmentType, req.JobID)
	if err != nil {
		return model.FinishResponse{}, err
	}

	failures, err := s.jobs.FindTaskFailuresByJobID(ctx, req.JobID)
	if err != nil {
		return model.FinishResponse{}, err
	}

	job.JobStatus = Status(req.Result, len(failures))
	job.FinishedAt = model.Timestamp(s.now())
	if req.Error != "" {
		job.Error = req.Error
	}
	if err := s.jobs.PutJob(ctx, job); err != nil {
		return model.FinishResponse{}, err
	}
	if _, err := s.jobs.PutLastJobMarker(ctx, job); err != nil {
		return model.FinishResponse{}, err
	}
	logger.Info("job finished", "status", job.JobStatus, "task_failures", len(failures))

	s.sendMetrics(ctx, job)
	return model.FinishResponse{Status: job.JobStatus}, nil
}

func (s *service) sendMetrics(ctx context.Context, job model.Job) {
	if s.metrics == nil || job.JobStatus == model.JobStatusFailed {
		return
	}
	switch job.AssessmentType {
	case model.AssessmentResourceBasedPolicy, model.AssessmentDelegatedAdmin, model.AssessmentTrustedAccess:
	default:
		return
	}
	rows, err := s.findings.FindByJobID(ctx, job.AssessmentType, job.JobID)
	if err != nil {
		s.logger.Warn("failed to read findings for metrics", "job_id", job.JobID, "error", fmt.Errorf("metrics: %w", err))
		return
	}
	s.metrics.SendScanMetrics(ctx, job.AssessmentType, rows)
}
