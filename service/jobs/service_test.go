package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) Service {
	t.Helper()
	table, err := storage.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = table.Close() })
	table.SetClock(func() time.Time { return fixedNow })

	n := 0
	return NewService(table, 90,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
		}),
		WithLogger(logging.Discard()),
	)
}

func TestCreateAndGetJob(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, model.JobCreateRequest{
		AssessmentType: model.AssessmentTrustedAccess,
		StartedBy:      "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "jobs", job.PartitionKey)
	assert.Equal(t, "TRUSTED_ACCESS#"+job.JobID, job.SortKey)
	assert.Equal(t, model.JobStatusActive, job.JobStatus)
	assert.Equal(t, "2026-03-01T12:00:00.000000Z", job.StartedAt)
	assert.Equal(t, fixedNow.Add(90*24*time.Hour).Unix(), job.ExpiresAt)

	got, err := svc.GetJob(ctx, model.AssessmentTrustedAccess, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestGetJobNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetJob(context.Background(), model.AssessmentTrustedAccess, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "Job not found", appErr.Title)

	err = svc.DeleteJob(context.Background(), model.AssessmentTrustedAccess, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestFindAllJobsLatestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i, at := range []string{"2026-01-01T00:00:00.000000Z", "2026-03-01T00:00:00.000000Z", "2026-02-01T00:00:00.000000Z"} {
		assessment := model.AssessmentDelegatedAdmin
		if i == 1 {
			assessment = model.AssessmentResourceBasedPolicy
		}
		_, err := svc.CreateJob(ctx, model.JobCreateRequest{AssessmentType: assessment, StartedAt: at})
		require.NoError(t, err)
	}

	jobs, err := svc.FindAllJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "2026-03-01T00:00:00.000000Z", jobs[0].StartedAt)
	assert.Equal(t, "2026-01-01T00:00:00.000000Z", jobs[2].StartedAt)

	byType, err := svc.FindJobsByAssessmentType(ctx, model.AssessmentDelegatedAdmin)
	require.NoError(t, err)
	assert.Len(t, byType, 2)
}

func TestMarkerLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	inProgress, err := svc.InProgress(ctx, model.AssessmentResourceBasedPolicy)
	require.NoError(t, err)
	assert.False(t, inProgress)

	marker, err := svc.GetLastJobMarker(ctx, model.AssessmentResourceBasedPolicy)
	require.NoError(t, err)
	assert.Nil(t, marker)

	job, err := svc.CreateJob(ctx, model.JobCreateRequest{AssessmentType: model.AssessmentResourceBasedPolicy})
	require.NoError(t, err)
	_, err = svc.PutLastJobMarker(ctx, job)
	require.NoError(t, err)

	inProgress, err = svc.InProgress(ctx, model.AssessmentResourceBasedPolicy)
	require.NoError(t, err)
	assert.True(t, inProgress)

	job.JobStatus = model.JobStatusSucceeded
	require.NoError(t, svc.PutJob(ctx, job))
	_, err = svc.PutLastJobMarker(ctx, job)
	require.NoError(t, err)

	marker, err = svc.GetLastJobMarker(ctx, model.AssessmentResourceBasedPolicy)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, "lastJobMarker", marker.PartitionKey)
	assert.Equal(t, "RESOURCE_BASED_POLICY", marker.SortKey)
	assert.Equal(t, job.JobID, marker.JobID)
	assert.Equal(t, model.JobStatusSucceeded, marker.JobStatus)

	markers, err := svc.FindAllLastJobMarkers(ctx)
	require.NoError(t, err)
	assert.Len(t, markers, 1)

	jobs, err := svc.FindAllJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "marker rows must not show up as jobs")
}

func TestTaskFailures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	region := "eu-west-1"

	failure, err := svc.CreateJobTaskFailure(ctx, model.JobTaskFailureCreateRequest{
		JobID:          "job-a",
		AssessmentType: model.AssessmentResourceBasedPolicy,
		ServiceName:    "sqs",
		AccountID:      "111111111111",
		Region:         &region,
		Error:          "Caught AccessDenied Exception in eu-west-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "RESOURCE_BASED_POLICY#job-a#00000000000040008000000000000001", failure.SortKey)

	_, err = svc.CreateJobTaskFailure(ctx, model.JobTaskFailureCreateRequest{
		JobID:          "job-a",
		AssessmentType: model.AssessmentResourceBasedPolicy,
		AccountID:      "222222222222",
		Error:          "account not accessible",
	})
	require.NoError(t, err)
	_, err = svc.CreateJobTaskFailure(ctx, model.JobTaskFailureCreateRequest{JobID: "job-b", Error: "x"})
	require.NoError(t, err)

	failures, err := svc.FindTaskFailuresByJobID(ctx, "job-a")
	require.NoError(t, err)
	require.Len(t, failures, 2)
	var regions []*string
	for _, f := range failures {
		regions = append(regions, f.Region)
	}
	assert.Contains(t, regions, (*string)(nil))
}
