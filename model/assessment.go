package model

// AssessmentType names one scan category. Each type has its own job history and marker.
type AssessmentType string

const (
	AssessmentDelegatedAdmin       AssessmentType = "DELEGATED_ADMIN"
	AssessmentTrustedAccess        AssessmentType = "TRUSTED_ACCESS"
	AssessmentResourceBasedPolicy  AssessmentType = "RESOURCE_BASED_POLICY"
	AssessmentPolicyExplorer       AssessmentType = "POLICY_EXPLORER"
	AssessmentPolicyExplorerSingle AssessmentType = "POLICY_EXPLORER_SINGLE"
)

// AssessmentTypes lists every assessment type in display order.
var AssessmentTypes = []AssessmentType{
	AssessmentDelegatedAdmin,
	AssessmentTrustedAccess,
	AssessmentResourceBasedPolicy,
	AssessmentPolicyExplorer,
	AssessmentPolicyExplorerSingle,
}

// Valid reports whether t is a known assessment type.
func (t AssessmentType) Valid() bool {
	for _, known := range AssessmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusActive                   JobStatus = "ACTIVE"
	JobStatusQueued                   JobStatus = "QUEUED"
	JobStatusSucceeded                JobStatus = "SUCCEEDED"
	JobStatusSucceededWithFailedTasks JobStatus = "SUCCEEDED_WITH_FAILED_TASKS"
	JobStatusFailed                   JobStatus = "FAILED"
)

// Terminal reports whether no further transition is expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusSucceededWithFailedTasks, JobStatusFailed:
		return true
	}
	return false
}

// ValidationType is the outcome of an account access check.
type ValidationType string

const (
	ValidationSucceeded ValidationType = "SUCCEEDED"
	ValidationFailed    ValidationType = "FAILED"
)

// ResultFailed is the orchestrator result that fails the whole job.
const ResultFailed = "FAILED"

// PolicyType partitions policy explorer items.
type PolicyType string

const (
	PolicyTypeResourceBased  PolicyType = "ResourceBasedPolicy"
	PolicyTypeIdentityBased  PolicyType = "IdentityBasedPolicy"
	PolicyTypeServiceControl PolicyType = "ServiceControlPolicy"
)

// Valid reports whether p is a known policy type.
func (p PolicyType) Valid() bool {
	switch p {
	case PolicyTypeResourceBased, PolicyTypeIdentityBased, PolicyTypeServiceControl:
		return true
	}
	return false
}
