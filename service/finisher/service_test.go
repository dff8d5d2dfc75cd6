package finisher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingMetrics struct {
	scans []int
}

func (r *recordingMetrics) SendScanMetrics(ctx context.Context, assessmentType model.AssessmentType, rows []map[string]any) {
	r.scans = append(r.scans, len(rows))
}

func (r *recordingMetrics) SendSearchMetrics(ctx context.Context, policyType model.PolicyType, region string, filters []string, results int) {
}

type fixture struct {
	jobs     jobs.Service
	findings findings.Service
	metrics  *recordingMetrics
	finisher Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	table, err := storage.NewSQLite(filepath.Join(t.TempDir(), "finisher.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = table.Close() })

	clock := func() time.Time { return fixedNow }
	table.SetClock(clock)
	f := fixture{
		jobs:     jobs.NewService(table, 90, jobs.WithClock(clock), jobs.WithLogger(logging.Discard())),
		findings: findings.NewService(table, 90, 2, findings.WithClock(clock), findings.WithLogger(logging.Discard())),
		metrics:  &recordingMetrics{},
	}
	f.finisher = NewService(f.jobs, f.findings,
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return fixedNow.Add(time.Minute) }),
		WithLogger(logging.Discard()),
	)
	return f
}

func (f fixture) startJob(t *testing.T, assessmentType model.AssessmentType) model.Job {
	t.Helper()
	job, err := f.jobs.CreateJob(context.Background(), model.JobCreateRequest{AssessmentType: assessmentType})
	require.NoError(t, err)
	_, err = f.jobs.PutLastJobMarker(context.Background(), job)
	require.NoError(t, err)
	return job
}

func TestStatus(t *testing.T) {
	tests := []struct {
		result   string
		failures int
		want     model.JobStatus
	}{
		{result: "SUCCEEDED", failures: 0, want: model.JobStatusSucceeded},
		{result: "SUCCEEDED", failures: 2, want: model.JobStatusSucceededWithFailedTasks},
		{result: "FAILED", failures: 0, want: model.JobStatusFailed},
		{result: "FAILED", failures: 3, want: model.JobStatusFailed},
		{result: "", failures: 0, want: model.JobStatusSucceeded},
	}
	for _, tt := range tests {
		if got := Status(tt.result, tt.failures); got != tt.want {
			t.Fatalf("Status(%q, %d) = %s, want %s", tt.result, tt.failures, got, tt.want)
		}
	}
}

func TestFinishWritesJobAndMarker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.startJob(t, model.AssessmentResourceBasedPolicy)

	region := "eu-west-1"
	_, err := f.jobs.CreateJobTaskFailure(ctx, model.JobTaskFailureCreateRequest{
		JobID: job.JobID, AssessmentType: job.AssessmentType, ServiceName: "sqs", AccountID: "111111111111", Region: &region, Error: "boom",
	})
	require.NoError(t, err)
	_, err = f.findings.PutResourceBasedPolicies(ctx, job.JobID, []model.ResourceBasedPolicyFinding{{
		AccountID: "111111111111", Region: "us-east-1", ServiceName: "s3", ResourceName: "bucket",
		DependencyType: "aws:PrincipalOrgID", DependencyOn: "o-abc",
	}})
	require.NoError(t, err)

	resp, err := f.finisher.Finish(ctx, model.FinishRequest{AssessmentType: job.AssessmentType, JobID: job.JobID, Result: "SUCCEEDED"})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceededWithFailedTasks, resp.Status)

	stored, err := f.jobs.GetJob(ctx, job.AssessmentType, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceededWithFailedTasks, stored.JobStatus)
	assert.Equal(t, "2026-03-01T12:01:00.000000Z", stored.FinishedAt)

	marker, err := f.jobs.GetLastJobMarker(ctx, job.AssessmentType)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, model.JobStatusSucceededWithFailedTasks, marker.JobStatus)
	assert.Equal(t, []int{1}, f.metrics.scans)

	inProgress, err := f.jobs.InProgress(ctx, job.AssessmentType)
	require.NoError(t, err)
	assert.False(t, inProgress)
}

func TestFinishFailedKeepsError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.startJob(t, model.AssessmentTrustedAccess)

	resp, err := f.finisher.Finish(ctx, model.FinishRequest{
		AssessmentType: job.AssessmentType, JobID: job.JobID, Result: model.ResultFailed, Error: "Validation Error No valid Regions selected",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, resp.Status)

	stored, err := f.jobs.GetJob(ctx, job.AssessmentType, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "Validation Error No valid Regions selected", stored.Error)
	assert.Empty(t, f.metrics.scans)
}

func TestFinishIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.startJob(t, model.AssessmentDelegatedAdmin)
	req := model.FinishRequest{AssessmentType: job.AssessmentType, JobID: job.JobID, Result: "SUCCEEDED"}

	first, err := f.finisher.Finish(ctx, req)
	require.NoError(t, err)
	afterFirst, err := f.jobs.GetJob(ctx, job.AssessmentType, job.JobID)
	require.NoError(t, err)

	second, err := f.finisher.Finish(ctx, req)
	require.NoError(t, err)
	afterSecond, err := f.jobs.GetJob(ctx, job.AssessmentType, job.JobID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, afterFirst, afterSecond)
}

func TestFinishMissingJob(t *testing.T) {
	f := newFixture(t)

	_, err := f.finisher.Finish(context.Background(), model.FinishRequest{
		AssessmentType: model.AssessmentTrustedAccess, JobID: "00000000-0000-4000-8000-000000000000",
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Finish error = %v, want not found", err)
	}
}

func TestFinishPolicyExplorerSkipsMetrics(t *testing.T) {
	f := newFixture(t)
	job := f.startJob(t, model.AssessmentPolicyExplorer)

	_, err := f.finisher.Finish(context.Background(), model.FinishRequest{AssessmentType: job.AssessmentType, JobID: job.JobID})
	require.NoError(t, err)
	assert.Empty(t, f.metrics.scans)
}
