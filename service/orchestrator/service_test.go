package orchestrator

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/finisher"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/service/resourcepolicy"
	"github.com/thirukguru/aws-account-assessment/service/scantask"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

const orgPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":"*","Action":"*",
	"Condition":{"StringEquals":{"aws:PrincipalOrgID":"o-abc123"}}}]}`

type fakeSessions struct{}

func (fakeSessions) ForAccount(ctx context.Context, accountID, region string) (aws.Config, error) {
	return aws.Config{Region: region}, nil
}

// fakeFetcher returns one org-scoped policy per call. errs are consumed in order per account and region.
type fakeFetcher struct {
	service string
	mu      sync.Mutex
	errs    map[string][]error
	calls   map[string]int
}

func (f *fakeFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]resourcepolicy.ResourcePolicy, error) {
	key := accountID + "/" + region
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[key]++
	var err error
	if queued := f.errs[key]; len(queued) > 0 {
		err, f.errs[key] = queued[0], queued[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []resourcepolicy.ResourcePolicy{{
		ResourceName: f.service + "-" + accountID,
		ResourceArn:  "arn:aws:" + f.service + ":" + region + ":" + accountID + ":" + f.service + "-" + accountID,
		PolicyType:   model.PolicyTypeResourceBased,
		Policy:       orgPolicy,
	}}, nil
}

type fakeValidator struct {
	failed map[string]bool
}

func (f fakeValidator) CheckAccountAccessPermission(ctx context.Context, req model.AccountValidationRequest) model.AccountValidationResponse {
	if f.failed[req.AccountID] {
		return model.AccountValidationResponse{Validation: model.ValidationFailed, ServicesToScanForAccount: []string{}, Regions: []string{}}
	}
	return model.AccountValidationResponse{
		Validation:               model.ValidationSucceeded,
		ServicesToScanForAccount: req.ServiceNames,
		Regions:                  req.Regions,
	}
}

type fixture struct {
	jobs     jobs.Service
	findings findings.Service
	s3       *fakeFetcher
	sqs      *fakeFetcher
	engine   *Engine
}

func newFixture(t *testing.T, v fakeValidator) fixture {
	t.Helper()
	table, err := storage.NewSQLite(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = table.Close() })

	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	table.SetClock(clock)
	f := fixture{
		jobs:     jobs.NewService(table, 90, jobs.WithClock(clock), jobs.WithLogger(logging.Discard())),
		findings: findings.NewService(table, 90, 2, findings.WithClock(clock), findings.WithLogger(logging.Discard())),
		s3:       &fakeFetcher{service: "s3"},
		sqs:      &fakeFetcher{service: "sqs"},
	}
	registry := resourcepolicy.Registry{"s3": f.s3, "sqs": f.sqs}
	tasks := scantask.NewService(fakeSessions{}, registry, f.jobs, f.findings, scantask.WithLogger(logging.Discard()))
	fin := finisher.NewService(f.jobs, f.findings, finisher.WithClock(clock), finisher.WithLogger(logging.Discard()))
	f.engine = NewEngine(v, tasks, fin,
		WithMaxParallel(3),
		WithMaxAttempts(3),
		WithBackoff(time.Millisecond),
		WithLogger(logging.Discard()),
	)
	return f
}

func (f fixture) startJob(t *testing.T) model.Job {
	t.Helper()
	job, err := f.jobs.CreateJob(context.Background(), model.JobCreateRequest{AssessmentType: model.AssessmentResourceBasedPolicy})
	require.NoError(t, err)
	_, err = f.jobs.PutLastJobMarker(context.Background(), job)
	require.NoError(t, err)
	return job
}

func scanInput(jobID string) model.ScanStartInput {
	return model.ScanStartInput{
		JobID:          jobID,
		AssessmentType: model.AssessmentResourceBasedPolicy,
		Scan: model.Scan{
			AccountIDs:   []string{"111111111111", "222222222222"},
			Regions:      []string{"us-east-1", "eu-west-1"},
			ServiceNames: []string{"s3", "sqs"},
		},
	}
}

func TestRunIsolatesBranchFailures(t *testing.T) {
	f := newFixture(t, fakeValidator{})
	f.sqs.errs = map[string][]error{
		"222222222222/eu-west-1": {&smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}},
		"111111111111/us-east-1": {&smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}},
	}
	job := f.startJob(t)

	resp, summary, err := f.engine.Run(context.Background(), scanInput(job.JobID))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceededWithFailedTasks, resp.Status)
	assert.Equal(t, Summary{Accounts: 2, ValidAccounts: 2, Branches: 6, FailedBranches: 1, Findings: 5}, summary)

	// The throttled branch was retried, the denied one was not.
	assert.Equal(t, 2, f.sqs.calls["111111111111/us-east-1"])
	assert.Equal(t, 1, f.sqs.calls["222222222222/eu-west-1"])
	// Global services are scanned once per account.
	assert.Equal(t, map[string]int{"111111111111/us-east-1": 1, "222222222222/us-east-1": 1}, f.s3.calls)

	failures, err := f.jobs.FindTaskFailuresByJobID(context.Background(), job.JobID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "sqs", failures[0].ServiceName)
	assert.Equal(t, "222222222222", failures[0].AccountID)
	require.NotNil(t, failures[0].Region)
	assert.Equal(t, "eu-west-1", *failures[0].Region)
	assert.Equal(t, "Caught AccessDenied Exception in eu-west-1", failures[0].Error)

	rows, err := f.findings.FindResourceBasedPoliciesByJobID(context.Background(), job.JobID)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	var keys []string
	for _, r := range rows {
		keys = append(keys, r.ServiceName+"/"+r.AccountID+"/"+r.Region)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"s3/111111111111/us-east-1",
		"s3/222222222222/us-east-1",
		"sqs/111111111111/eu-west-1",
		"sqs/111111111111/us-east-1",
		"sqs/222222222222/us-east-1",
	}, keys)

	marker, err := f.jobs.GetLastJobMarker(context.Background(), model.AssessmentResourceBasedPolicy)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceededWithFailedTasks, marker.JobStatus)
}

func TestRunRecordsExhaustedRetries(t *testing.T) {
	f := newFixture(t, fakeValidator{})
	throttled := &smithy.GenericAPIError{Code: "ThrottlingException"}
	f.sqs.errs = map[string][]error{"111111111111/eu-west-1": {throttled, throttled, throttled, throttled}}
	job := f.startJob(t)

	_, summary, err := f.engine.Run(context.Background(), scanInput(job.JobID))
	require.NoError(t, err)
	assert.Equal(t, 3, f.sqs.calls["111111111111/eu-west-1"])
	assert.Equal(t, 1, summary.FailedBranches)
}

func TestRunSkipsAccountsThatFailValidation(t *testing.T) {
	f := newFixture(t, fakeValidator{failed: map[string]bool{"222222222222": true}})
	job := f.startJob(t)

	resp, summary, err := f.engine.Run(context.Background(), scanInput(job.JobID))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, resp.Status)
	assert.Equal(t, 1, summary.ValidAccounts)
	assert.Equal(t, 3, summary.Branches)
	for key := range f.sqs.calls {
		assert.NotContains(t, key, "222222222222")
	}
}

func TestRunEmptyOrganizationSucceeds(t *testing.T) {
	f := newFixture(t, fakeValidator{})
	job := f.startJob(t)
	input := scanInput(job.JobID)
	input.Scan.AccountIDs = []string{}

	resp, summary, err := f.engine.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, resp.Status)
	assert.Zero(t, summary.Branches)
}

func TestRunFailsJobWhenCancelled(t *testing.T) {
	f := newFixture(t, fakeValidator{})
	job := f.startJob(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, _, err := f.engine.Run(ctx, scanInput(job.JobID))
	require.Error(t, err)
	assert.Equal(t, model.JobStatusFailed, resp.Status)

	stored, err := f.jobs.GetJob(context.Background(), model.AssessmentResourceBasedPolicy, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, stored.JobStatus)
}

func TestStartRunsInBackground(t *testing.T) {
	f := newFixture(t, fakeValidator{})
	job := f.startJob(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, f.engine.Start(ctx, scanInput(job.JobID)))
	cancel()
	f.engine.Wait()

	stored, err := f.jobs.GetJob(context.Background(), model.AssessmentResourceBasedPolicy, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, stored.JobStatus)
}
