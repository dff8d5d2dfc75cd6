package tables

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thirukguru/aws-account-assessment/model"
)

func TestDrawJobsTable(t *testing.T) {
	var buf bytes.Buffer
	DrawJobsTable(&buf, []model.Job{{
		AssessmentType: model.AssessmentTrustedAccess,
		JobID:          "6f1c8f0e-4a55-4b7a-9d5b-1c2d3e4f5a6b",
		JobStatus:      model.JobStatusSucceeded,
		StartedAt:      "2026-03-01T12:00:00.000000Z",
		StartedBy:      "alice@example.com",
	}})

	out := buf.String()
	assert.Contains(t, out, "TRUSTED_ACCESS")
	assert.Contains(t, out, "6f1c8f0e-4a55-4b7a-9d5b-1c2d3e4f5a6b")
	assert.Contains(t, out, "alice@example.com")
}

func TestDrawJobsTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	DrawJobsTable(&buf, nil)
	assert.Contains(t, buf.String(), "No jobs found.")
}

func TestDrawJobDetails(t *testing.T) {
	region := "eu-west-1"
	var buf bytes.Buffer
	DrawJobDetails(&buf, model.JobDetails{
		Job: model.Job{AssessmentType: model.AssessmentResourceBasedPolicy, JobID: "job", JobStatus: model.JobStatusSucceededWithFailedTasks},
		Findings: []map[string]any{{
			"AccountId":      "111111111111",
			"Region":         "us-east-1",
			"ServiceName":    "s3",
			"ResourceName":   "shared-bucket",
			"DependencyType": "aws:PrincipalOrgID",
			"DependencyOn":   "o-abc",
		}},
		TaskFailures: []model.JobTaskFailure{{ServiceName: "sqs", AccountID: "222222222222", Region: &region, Error: "Caught AccessDenied Exception in eu-west-1"}},
	})

	out := buf.String()
	assert.Contains(t, out, "Findings (1)")
	assert.Contains(t, out, "shared-bucket")
	assert.Contains(t, out, "Task failures (1)")
	assert.Contains(t, out, "Caught AccessDenied Exception in eu-west-1")
}

func TestDrawJobDetailsExplorer(t *testing.T) {
	var buf bytes.Buffer
	DrawJobDetails(&buf, model.JobDetails{Job: model.Job{AssessmentType: model.AssessmentPolicyExplorer}})
	assert.Contains(t, buf.String(), "searched with the API")
	assert.NotContains(t, buf.String(), "Task failures")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "short", max: 10, want: "short"},
		{in: "abcdefghijkl", max: 8, want: "abcde..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
