package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/storage"
)

const (
	PartitionJobs         = "jobs"
	PartitionJobMarker    = "lastJobMarker"
	PartitionTaskFailures = "taskFailures"
)

// Service is the job repository.
type Service interface {
	CreateJob(ctx context.Context, req model.JobCreateRequest) (model.Job, error)
	PutJob(ctx context.Context, job model.Job) error
	GetJob(ctx context.Context, assessmentType model.AssessmentType, jobID string) (model.Job, error)
	FindAllJobs(ctx context.Context) ([]model.Job, error)
	FindJobsByAssessmentType(ctx context.Context, assessmentType model.AssessmentType) ([]model.Job, error)
	DeleteJob(ctx context.Context, assessmentType model.AssessmentType, jobID string) error
	PutLastJobMarker(ctx context.Context, job model.Job) (model.Job, error)
	GetLastJobMarker(ctx context.Context, assessmentType model.AssessmentType) (*model.Job, error)
	FindAllLastJobMarkers(ctx context.Context) ([]model.Job, error)
	InProgress(ctx context.Context, assessmentType model.AssessmentType) (bool, error)
	CreateJobTaskFailure(ctx context.Context, req model.JobTaskFailureCreateRequest) (model.JobTaskFailure, error)
	FindTaskFailuresByJobID(ctx context.Context, jobID string) ([]model.JobTaskFailure, error)
}

// Option customizes the repository.
type Option func(*service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithIDGenerator overrides job and failure id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *service) { s.newID = newID }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

type service struct {
	table   storage.Table
	ttlDays int
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}
