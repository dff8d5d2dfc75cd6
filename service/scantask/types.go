package scantask

import (
	"context"
	"errors"
	"log/slog"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	awsorganizations "github.com/thirukguru/aws-account-assessment/service/organizations"
	"github.com/thirukguru/aws-account-assessment/service/resourcepolicy"
)

// OrganizationsService is the branch name that scans service control policies
// of the organization in policy explorer jobs.
const OrganizationsService = "organizations"

// UnsupportedService is the task failure text of an unknown service name.
const UnsupportedService = "Unsupported Service"

// ErrPersist marks failures to store findings. They abort the branch instead of
// becoming task failures.
var ErrPersist = errors.New("failed to persist findings")

// SCPSource lists the service control policies of the organization.
type SCPSource interface {
	ListServiceControlPolicies(ctx context.Context) ([]awsorganizations.ServiceControlPolicy, error)
}

// Service runs one scan branch: one service in one account over one or more regions.
type Service interface {
	// Run scans every region of req. A region that fails is recorded as a task
	// failure and the others continue.
	Run(ctx context.Context, req model.ScanServiceRequest) (model.ScanServiceResponse, error)
	// ScanRegion scans a single region and returns fetch errors unchanged so that
	// callers can retry them.
	ScanRegion(ctx context.Context, req model.ScanServiceRequest, region string) (int, error)
	// RecordFailure writes the task failure of a region that could not be scanned.
	RecordFailure(ctx context.Context, req model.ScanServiceRequest, region string, cause error) error
	// Regions returns the regions a request covers.
	Regions(req model.ScanServiceRequest) []string
}

// Option customizes the runner.
type Option func(*service)

// WithSCPSource enables the organizations branch of policy explorer jobs.
func WithSCPSource(source SCPSource) Option {
	return func(s *service) { s.scps = source }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

type service struct {
	sessions awsconfig.SessionProvider
	registry resourcepolicy.Registry
	jobs     jobs.Service
	findings findings.Service
	scps     SCPSource
	logger   *slog.Logger
}
