package api

import (
	"log/slog"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/dispatch"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/service/metrics"
	"github.com/thirukguru/aws-account-assessment/service/scanconfig"
)

// Dependencies are the services behind the API.
type Dependencies struct {
	Jobs       jobs.Service
	Findings   findings.Service
	Configs    scanconfig.Service
	Runner     *dispatch.AssessmentRunner
	Strategies []dispatch.Strategy
	Metrics    metrics.Service
	Logger     *slog.Logger
}

// ResultList wraps list responses.
type ResultList[T any] struct {
	Results []T `json:"Results"`
}

// ResourceBasedPolicies is the response of GET /resource-based-policies.
type ResourceBasedPolicies struct {
	ScanInProgress bool                               `json:"ScanInProgress"`
	Results        []model.ResourceBasedPolicyFinding `json:"Results"`
}

// ScanConfigs is the response of GET /scan-configs.
type ScanConfigs struct {
	SavedConfigurations []model.ScanConfig       `json:"SavedConfigurations"`
	SupportedServices   []model.SupportedService `json:"SupportedServices"`
	SupportedRegions    []model.SupportedRegion  `json:"SupportedRegions"`
}

// Pagination describes whether more search results exist.
type Pagination struct {
	NextToken      *string `json:"nextToken"`
	HasMoreResults bool    `json:"hasMoreResults"`
}

// PolicySearch is the response of GET /policy-explorer/{policyType}.
type PolicySearch struct {
	Results    []model.PolicyItem `json:"Results"`
	Pagination Pagination         `json:"Pagination"`
}

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Error   string `json:"Error"`
	Message string `json:"Message,omitempty"`
}

// StartedByHeader carries the email of the caller that starts a scan.
const StartedByHeader = "X-User-Email"
