package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	awsorganizations "github.com/thirukguru/aws-account-assessment/service/organizations"
)

// Strategy performs the scan of one assessment type.
type Strategy interface {
	AssessmentType() model.AssessmentType
	// Synchronous reports whether every finding is stored when Scan returns.
	// Other strategies hand the job to an orchestrator that finishes it.
	Synchronous() bool
	Scan(ctx context.Context, jobID string, req model.ScanRequest) error
}

// Starter starts the orchestrator of an asynchronous scan.
type Starter interface {
	Start(ctx context.Context, input model.ScanStartInput) error
}

// AccountSource lists the accounts of the organization.
type AccountSource interface {
	ListActiveAccounts(ctx context.Context) ([]awsorganizations.Account, error)
	AccountsForOrgUnits(ctx context.Context, orgUnitIDs []string) ([]awsorganizations.Account, error)
}

// RunnerOption customizes the AssessmentRunner.
type RunnerOption func(*AssessmentRunner)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *AssessmentRunner) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *AssessmentRunner) { r.logger = logger }
}
