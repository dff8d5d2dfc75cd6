package findings

import (
	"context"
	"log/slog"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/storage"
)

const (
	PartitionPolicies        = "Policies"
	PartitionDelegatedAdmins = "DelegatedAdmins"
	PartitionTrustedServices = "TrustedServices"
)

// Default and maximum page size of policy item searches.
const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 1000
)

// Service persists and reads every kind of finding.
type Service interface {
	PutResourceBasedPolicies(ctx context.Context, jobID string, findings []model.ResourceBasedPolicyFinding) ([]model.ResourceBasedPolicyFinding, error)
	FindAllResourceBasedPolicies(ctx context.Context) ([]model.ResourceBasedPolicyFinding, error)
	FindResourceBasedPoliciesByJobID(ctx context.Context, jobID string) ([]model.ResourceBasedPolicyFinding, error)

	PutDelegatedAdmins(ctx context.Context, jobID string, findings []model.DelegatedAdminFinding) ([]model.DelegatedAdminFinding, error)
	FindAllDelegatedAdmins(ctx context.Context) ([]model.DelegatedAdminFinding, error)

	PutTrustedAccess(ctx context.Context, jobID string, findings []model.TrustedAccessFinding) ([]model.TrustedAccessFinding, error)
	FindAllTrustedAccess(ctx context.Context) ([]model.TrustedAccessFinding, error)

	PutPolicyItems(ctx context.Context, items []model.PolicyItem) error
	SearchPolicyItems(ctx context.Context, req SearchRequest) (SearchResult, error)

	// FindByJobID returns the raw finding rows written by one job.
	FindByJobID(ctx context.Context, assessmentType model.AssessmentType, jobID string) ([]map[string]any, error)
}

// SearchRequest selects policy items of one policy type in one region.
type SearchRequest struct {
	PolicyType model.PolicyType
	Region     string
	// Filters maps an item attribute to a substring it must contain.
	Filters  map[string]string
	Limit    int
	StartKey *storage.Key
}

// SearchResult is one page of policy items.
type SearchResult struct {
	Items   []model.PolicyItem
	LastKey *storage.Key
}

// Option customizes the repository.
type Option func(*service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

type service struct {
	table             storage.Table
	ttlDays           int
	policyItemTTLDays int
	now               func() time.Time
	logger            *slog.Logger
}
