package model

import "time"

// TimestampLayout is the fixed width ISO-8601 layout of every stored timestamp, so that
// timestamps sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Timestamp formats t in UTC with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TableKeys are the attributes every row of the component table carries.
type TableKeys struct {
	PartitionKey string `json:"PartitionKey,omitempty"`
	SortKey      string `json:"SortKey,omitempty"`
	ExpiresAt    int64  `json:"ExpiresAt,omitempty"`
}

// Job is one assessment run.
type Job struct {
	TableKeys
	AssessmentType AssessmentType `json:"AssessmentType"`
	JobID          string         `json:"JobId"`
	JobStatus      JobStatus      `json:"JobStatus"`
	StartedAt      string         `json:"StartedAt"`
	FinishedAt     string         `json:"FinishedAt,omitempty"`
	StartedBy      string         `json:"StartedBy,omitempty"`
	Error          string         `json:"Error,omitempty"`
}

// JobCreateRequest holds the caller supplied attributes of a new job.
type JobCreateRequest struct {
	AssessmentType AssessmentType
	JobID          string
	StartedAt      string
	StartedBy      string
	JobStatus      JobStatus
}

// JobTaskFailure records one failed branch of a job.
type JobTaskFailure struct {
	TableKeys
	JobID          string         `json:"JobId"`
	AssessmentType AssessmentType `json:"AssessmentType"`
	ServiceName    string         `json:"ServiceName,omitempty"`
	AccountID      string         `json:"AccountId,omitempty"`
	Region         *string        `json:"Region"`
	FailedAt       string         `json:"FailedAt"`
	Error          string         `json:"Error"`
}

// JobTaskFailureCreateRequest holds the attributes of a new task failure.
type JobTaskFailureCreateRequest struct {
	JobID          string
	AssessmentType AssessmentType
	ServiceName    string
	AccountID      string
	Region         *string
	Error          string
}

// JobDetails is the read model of a single job.
type JobDetails struct {
	Job          Job              `json:"Job"`
	Findings     []map[string]any `json:"Findings"`
	TaskFailures []JobTaskFailure `json:"TaskFailures"`
}
