// Package jobs persists assessment jobs, their last-job markers and task failures.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// NewService creates a job repository on table. Rows expire ttlDays after they are written.
func NewService(table storage.Table, ttlDays int, opts ...Option) Service {
	s := &service{
		table:   table,
		ttlDays: ttlDays,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With("component", "jobs")
	return s
}

// JobSortKey is the sort key of a job row.
func JobSortKey(assessmentType model.AssessmentType, jobID string) string {
	return string(assessmentType) + "#" + jobID
}

func (s *service) expiresAt() int64 {
	return storage.ExpiresAt(s.now(), s.ttlDays)
}

func (s *service) CreateJob(ctx context.Context, req model.JobCreateRequest) (model.Job, error) {
	jobID := req.JobID
	if jobID == "" {
		jobID = s.newID()
	}
	startedAt := req.StartedAt
	if startedAt == "" {
		startedAt = model.Timestamp(s.now())
	}
	status := req.JobStatus
	if status == "" {
		status = model.JobStatusActive
	}

	job := model.Job{
		TableKeys: model.TableKeys{
			PartitionKey: PartitionJobs,
			SortKey:      JobSortKey(req.AssessmentType, jobID),
			ExpiresAt:    s.expiresAt(),
		},
		AssessmentType: req.AssessmentType,
		JobID:          jobID,
		JobStatus:      status,
		StartedAt:      startedAt,
		StartedBy:      req.StartedBy,
	}
	if err := s.put(ctx, job); err != nil {
		return model.Job{}, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (s *service) PutJob(ctx context.Context, job model.Job) error {
	job.PartitionKey = PartitionJobs
	job.SortKey = JobSortKey(job.AssessmentType, job.JobID)
	if job.ExpiresAt == 0 {
		job.ExpiresAt = s.expiresAt()
	}
	if err := s.put(ctx, job); err != nil {
		return fmt.Errorf("failed to put job %s: %w", job.JobID, err)
	}
	return nil
}

func (s *service) GetJob(ctx context.Context, assessmentType model.AssessmentType, jobID string) (model.Job, error) {
	item, err := s.table.GetItem(ctx, storage.Key{PartitionKey: PartitionJobs, SortKey: JobSortKey(assessmentType, jobID)})
	if err != nil {
		return model.Job{}, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	if item == nil {
		s.logger.Error("job not found", "assessment_type", assessmentType, "job_id", jobID)
		return model.Job{}, apperror.NotFound("Job not found", "No job with jobId "+jobID)
	}
	var job model.Job
	if err := storage.Decode(item, &job); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

func (s *service) FindAllJobs(ctx context.Context) ([]model.Job, error) {
	return s.findJobs(ctx, storage.Query{PartitionKey: PartitionJobs})
}

func (s *service) FindJobsByAssessmentType(ctx context.Context, assessmentType model.AssessmentType) ([]model.Job, error) {
	return s.findJobs(ctx, storage.Query{PartitionKey: PartitionJobs, SortKeyPrefix: string(assessmentType) + "#"})
}

func (s *service) findJobs(ctx context.Context, q storage.Query) ([]model.Job, error) {
	items, err := storage.QueryAll(ctx, s.table, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	jobs, err := storage.DecodeAll[model.Job](items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].StartedAt > jobs[j].StartedAt
	})
	return jobs, nil
}

// DeleteJob removes the job row. Findings and failures expire on their own.
func (s *service) DeleteJob(ctx context.Context, assessmentType model.AssessmentType, jobID string) error {
	if _, err := s.GetJob(ctx, assessmentType, jobID); err != nil {
		return err
	}
	key := storage.Key{PartitionKey: PartitionJobs, SortKey: JobSortKey(assessmentType, jobID)}
	if err := s.table.DeleteItem(ctx, key); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}

// PutLastJobMarker overwrites the marker of the job's assessment type with the job's attributes.
func (s *service) PutLastJobMarker(ctx context.Context, job model.Job) (model.Job, error) {
	marker := job
	marker.PartitionKey = PartitionJobMarker
	marker.SortKey = string(job.AssessmentType)
	marker.ExpiresAt = s.expiresAt()
	if err := s.put(ctx, marker); err != nil {
		return model.Job{}, fmt.Errorf("failed to put last job marker: %w", err)
	}
	s.logger.Debug("stored last job marker", "job_id", job.JobID, "status", job.JobStatus)
	return marker, nil
}

func (s *service) GetLastJobMarker(ctx context.Context, assessmentType model.AssessmentType) (*model.Job, error) {
	item, err := s.table.GetItem(ctx, storage.Key{PartitionKey: PartitionJobMarker, SortKey: string(assessmentType)})
	if err != nil {
		return nil, fmt.Errorf("failed to get last job marker: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	var marker model.Job
	if err := storage.Decode(item, &marker); err != nil {
		return nil, err
	}
	return &marker, nil
}

func (s *service) FindAllLastJobMarkers(ctx context.Context) ([]model.Job, error) {
	items, err := storage.QueryAll(ctx, s.table, storage.Query{PartitionKey: PartitionJobMarker})
	if err != nil {
		return nil, fmt.Errorf("failed to list job markers: %w", err)
	}
	return storage.DecodeAll[model.Job](items)
}

// InProgress reports whether the marker of assessmentType is ACTIVE.
func (s *service) InProgress(ctx context.Context, assessmentType model.AssessmentType) (bool, error) {
	marker, err := s.GetLastJobMarker(ctx, assessmentType)
	if err != nil {
		return false, err
	}
	return marker != nil && marker.JobStatus == model.JobStatusActive, nil
}

func (s *service) CreateJobTaskFailure(ctx context.Context, req model.JobTaskFailureCreateRequest) (model.JobTaskFailure, error) {
	failureID := strings.ReplaceAll(s.newID(), "-", "")
	failure := model.JobTaskFailure{
		TableKeys: model.TableKeys{
			PartitionKey: PartitionTaskFailures,
			SortKey:      fmt.Sprintf("%s#%s#%s", req.AssessmentType, req.JobID, failureID),
			ExpiresAt:    s.expiresAt(),
		},
		JobID:          req.JobID,
		AssessmentType: req.AssessmentType,
		ServiceName:    req.ServiceName,
		AccountID:      req.AccountID,
		Region:         req.Region,
		FailedAt:       model.Timestamp(s.now()),
		Error:          req.Error,
	}
	if err := s.put(ctx, failure); err != nil {
		return model.JobTaskFailure{}, fmt.Errorf("failed to write task failure: %w", err)
	}
	s.logger.Debug("wrote task failure",
		"job_id", req.JobID, "account_id", req.AccountID, "service", req.ServiceName, "error", req.Error)
	return failure, nil
}

func (s *service) FindTaskFailuresByJobID(ctx context.Context, jobID string) ([]model.JobTaskFailure, error) {
	items, err := storage.QueryAll(ctx, s.table, storage.Query{JobID: jobID, PartitionKey: PartitionTaskFailures})
	if err != nil {
		return nil, fmt.Errorf("failed to list task failures of %s: %w", jobID, err)
	}
	return storage.DecodeAll[model.JobTaskFailure](items)
}

func (s *service) put(ctx context.Context, v any) error {
	item, err := storage.Encode(v)
	if err != nil {
		return err
	}
	return s.table.PutItem(ctx, item)
}
