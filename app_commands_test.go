package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirukguru/aws-account-assessment/config"
	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

func newTestApp(t *testing.T) *application {
	t.Helper()
	cfg, err := config.Parse(env.Options{Environment: map[string]string{
		"SQLITE_PATH": filepath.Join(t.TempDir(), "component.db"),
	}})
	if err != nil {
		t.Fatalf("config.Parse failed: %v", err)
	}
	app, err := newApplication(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("newApplication failed: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestTaskFinishWritesStatus(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	job, err := app.jobs.CreateJob(ctx, model.JobCreateRequest{AssessmentType: model.AssessmentPolicyExplorer})
	require.NoError(t, err)

	event := `{"AssessmentType":"POLICY_EXPLORER","JobId":"` + job.JobID + `","Result":"SUCCEEDED"}`
	var out bytes.Buffer
	if err := runTaskCommand(ctx, app, []string{"finish"}, strings.NewReader(event), &out); err != nil {
		t.Fatalf("task finish failed: %v", err)
	}

	var resp model.FinishResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, model.JobStatusSucceeded, resp.Status)

	stored, err := app.jobs.GetJob(ctx, model.AssessmentPolicyExplorer, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, stored.JobStatus)
	assert.NotEmpty(t, stored.FinishedAt)
}

func TestTaskCommandErrors(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		args  []string
		event string
		want  string
	}{
		{name: "missing task", args: nil, want: "usage"},
		{name: "unknown task", args: []string{"explode"}, want: "unsupported task"},
		{name: "bad event", args: []string{"finish"}, event: "{", want: "failed to decode task event"},
		{name: "unknown job", args: []string{"finish"}, event: `{"AssessmentType":"POLICY_EXPLORER","JobId":"missing","Result":"SUCCEEDED"}`, want: "Job not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runTaskCommand(ctx, app, tt.args, strings.NewReader(tt.event), &bytes.Buffer{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestJobsListAndShow(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	job, err := app.jobs.CreateJob(ctx, model.JobCreateRequest{AssessmentType: model.AssessmentTrustedAccess, StartedBy: "alice"})
	require.NoError(t, err)
	_, err = app.findings.PutTrustedAccess(ctx, job.JobID, []model.TrustedAccessFinding{{ServicePrincipal: "sso.amazonaws.com"}})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runJobsCommand(ctx, app, nil, &out, "json"))
	var all []model.Job
	require.NoError(t, json.Unmarshal(out.Bytes(), &all))
	require.Len(t, all, 1)
	assert.Equal(t, job.JobID, all[0].JobID)

	out.Reset()
	require.NoError(t, runJobsCommand(ctx, app, []string{"show", "TRUSTED_ACCESS", job.JobID}, &out, "json"))
	var details model.JobDetails
	require.NoError(t, json.Unmarshal(out.Bytes(), &details))
	require.Len(t, details.Findings, 1)
	assert.Equal(t, "sso.amazonaws.com", details.Findings[0]["ServicePrincipal"])

	out.Reset()
	require.NoError(t, runJobsCommand(ctx, app, []string{"show", "TRUSTED_ACCESS", job.JobID}, &out, "table"))
	assert.Contains(t, out.String(), "sso.amazonaws.com")

	err = runJobsCommand(ctx, app, []string{"show", "NOPE", job.JobID}, &out, "table")
	assert.ErrorContains(t, err, "invalid assessment type")
}

func TestDBCommands(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runDBCommand(ctx, app, []string{"purge"}, &out))
	assert.Equal(t, "Purged 0 expired rows\n", out.String())
	require.NoError(t, runDBCommand(ctx, app, []string{"vacuum"}, &out))
	assert.Error(t, runDBCommand(ctx, app, []string{"reindex"}, &out))
	assert.Error(t, runDBCommand(ctx, app, nil, &out))
}

func TestApplyFlags(t *testing.T) {
	cfg, err := config.Parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	applyFlags(&cfg, model.Flags{
		Profile:      "audit",
		Region:       "eu-west-1",
		StoreBackend: "dynamodb",
		Table:        "Component",
		HTTPAddr:     ":9090",
		MaxParallel:  2,
		LogLevel:     "debug",
	})

	assert.Equal(t, "audit", cfg.AWS.Profile)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, config.StoreDynamoDB, cfg.Store.Backend)
	assert.Equal(t, "Component", cfg.Store.Table)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 2, cfg.Orchestration.MaxParallelBranches)
	assert.Equal(t, "debug", cfg.LogLevel)

	applyFlags(&cfg, model.Flags{StoreBackend: "postgres"})
	assert.Equal(t, config.StoreDynamoDB, cfg.Store.Backend)
}

func TestPrintVersion(t *testing.T) {
	info := model.VersionInfo{Version: "1.2.0", Commit: "abc123", Date: "2026-03-01"}

	var out bytes.Buffer
	require.NoError(t, printVersion(&out, "table", info))
	assert.Equal(t, "aws-account-assessment 1.2.0 (commit abc123, built 2026-03-01)\n", out.String())

	out.Reset()
	require.NoError(t, printVersion(&out, "json", info))
	assert.JSONEq(t, `{"version":"1.2.0","commit":"abc123","date":"2026-03-01"}`, out.String())
}
