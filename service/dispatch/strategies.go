package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	awsorganizations "github.com/thirukguru/aws-account-assessment/service/organizations"
	"github.com/thirukguru/aws-account-assessment/service/scanconfig"
	"github.com/thirukguru/aws-account-assessment/service/scantask"
	"github.com/thirukguru/aws-account-assessment/service/validator"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// DelegatedAdminStrategy records every delegated administrator and the services delegated to it.
type DelegatedAdminStrategy struct {
	org      awsorganizations.Service
	findings findings.Service
	logger   *slog.Logger
}

// NewDelegatedAdminStrategy creates a DelegatedAdminStrategy.
func NewDelegatedAdminStrategy(org awsorganizations.Service, findingRepo findings.Service, logger *slog.Logger) *DelegatedAdminStrategy {
	return &DelegatedAdminStrategy{org: org, findings: findingRepo, logger: logging.OrDefault(logger).With("component", "delegated-admins")}
}

func (s *DelegatedAdminStrategy) AssessmentType() model.AssessmentType {
	return model.AssessmentDelegatedAdmin
}

func (s *DelegatedAdminStrategy) Synchronous() bool { return true }

func (s *DelegatedAdminStrategy) Scan(ctx context.Context, jobID string, _ model.ScanRequest) error {
	admins, err := s.org.ListDelegatedAdmins(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("found delegated administrators", "job_id", jobID, "accounts", len(admins))

	var rows []model.DelegatedAdminFinding
	for _, admin := range admins {
		services, err := s.org.ListDelegatedServices(ctx, admin.AccountID)
		if err != nil {
			return err
		}
		for _, svc := range services {
			rows = append(rows, model.DelegatedAdminFinding{
				AccountID:             admin.AccountID,
				ServicePrincipal:      svc.ServicePrincipal,
				Arn:                   admin.Arn,
				Email:                 admin.Email,
				Name:                  admin.Name,
				Status:                admin.Status,
				JoinedMethod:          admin.JoinedMethod,
				JoinedTimestamp:       timestamp(admin.JoinedTimestamp),
				DelegationEnabledDate: timestamp(svc.DelegationEnabledDate),
			})
		}
	}
	_, err = s.findings.PutDelegatedAdmins(ctx, jobID, rows)
	return err
}

// TrustedAccessStrategy records every service principal with trusted access enabled.
type TrustedAccessStrategy struct {
	org      awsorganizations.Service
	findings findings.Service
}

// NewTrustedAccessStrategy creates a TrustedAccessStrategy.
func NewTrustedAccessStrategy(org awsorganizations.Service, findingRepo findings.Service) *TrustedAccessStrategy {
	return &TrustedAccessStrategy{org: org, findings: findingRepo}
}

func (s *TrustedAccessStrategy) AssessmentType() model.AssessmentType {
	return model.AssessmentTrustedAccess
}

func (s *TrustedAccessStrategy) Synchronous() bool { return true }

func (s *TrustedAccessStrategy) Scan(ctx context.Context, jobID string, _ model.ScanRequest) error {
	services, err := s.org.ListTrustedServices(ctx)
	if err != nil {
		return err
	}
	rows := make([]model.TrustedAccessFinding, 0, len(services))
	for _, svc := range services {
		rows = append(rows, model.TrustedAccessFinding{
			ServicePrincipal: svc.ServicePrincipal,
			DateEnabled:      timestamp(svc.DateEnabled),
		})
	}
	_, err = s.findings.PutTrustedAccess(ctx, jobID, rows)
	return err
}

// ResourceBasedPolicyStrategy resolves the scan scope and starts the orchestrator.
type ResourceBasedPolicyStrategy struct {
	accounts AccountSource
	configs  scanconfig.Service
	starter  Starter
}

// NewResourceBasedPolicyStrategy creates a ResourceBasedPolicyStrategy.
func NewResourceBasedPolicyStrategy(accounts AccountSource, configs scanconfig.Service, starter Starter) *ResourceBasedPolicyStrategy {
	return &ResourceBasedPolicyStrategy{accounts: accounts, configs: configs, starter: starter}
}

func (s *ResourceBasedPolicyStrategy) AssessmentType() model.AssessmentType {
	return model.AssessmentResourceBasedPolicy
}

func (s *ResourceBasedPolicyStrategy) Synchronous() bool { return false }

func (s *ResourceBasedPolicyStrategy) Scan(ctx context.Context, jobID string, req model.ScanRequest) error {
	scan, err := ResolveScope(ctx, s.accounts, req)
	if err != nil {
		return err
	}
	if req.ConfigurationName != "" {
		if _, err := s.configs.Save(ctx, req); err != nil {
			return err
		}
	}
	return s.starter.Start(ctx, model.ScanStartInput{
		JobID:          jobID,
		AssessmentType: model.AssessmentResourceBasedPolicy,
		Scan:           scan,
	})
}

// PolicyExplorerStrategy scans service control policies of the organization, then
// starts the orchestrator for every account policy.
type PolicyExplorerStrategy struct {
	accounts AccountSource
	starter  Starter
	scps     scantask.Service
}

// NewPolicyExplorerStrategy creates a PolicyExplorerStrategy. A nil scps skips
// service control policies.
func NewPolicyExplorerStrategy(accounts AccountSource, starter Starter, scps scantask.Service) *PolicyExplorerStrategy {
	return &PolicyExplorerStrategy{accounts: accounts, starter: starter, scps: scps}
}

func (s *PolicyExplorerStrategy) AssessmentType() model.AssessmentType {
	return model.AssessmentPolicyExplorer
}

func (s *PolicyExplorerStrategy) Synchronous() bool { return false }

func (s *PolicyExplorerStrategy) Scan(ctx context.Context, jobID string, req model.ScanRequest) error {
	scan, err := ResolveScope(ctx, s.accounts, req)
	if err != nil {
		return err
	}
	if s.scps != nil {
		// Failures are recorded as task failures of the job.
		if _, err := s.scps.Run(ctx, model.ScanServiceRequest{
			JobID:          jobID,
			AssessmentType: model.AssessmentPolicyExplorer,
			ServiceName:    scantask.OrganizationsService,
		}); err != nil {
			return err
		}
	}
	return s.starter.Start(ctx, model.ScanStartInput{
		JobID:          jobID,
		AssessmentType: model.AssessmentPolicyExplorer,
		Scan:           scan,
	})
}

// SingleServiceStrategy scans one service of one account synchronously.
type SingleServiceStrategy struct {
	tasks scantask.Service
}

// NewSingleServiceStrategy creates a SingleServiceStrategy.
func NewSingleServiceStrategy(tasks scantask.Service) *SingleServiceStrategy {
	return &SingleServiceStrategy{tasks: tasks}
}

func (s *SingleServiceStrategy) AssessmentType() model.AssessmentType {
	return model.AssessmentPolicyExplorerSingle
}

func (s *SingleServiceStrategy) Synchronous() bool { return true }

func (s *SingleServiceStrategy) Scan(ctx context.Context, jobID string, req model.ScanRequest) error {
	task, err := ParseSingleServiceRequest(jobID, req)
	if err != nil {
		return err
	}
	_, err = s.tasks.Run(ctx, task)
	return err
}

// ParseSingleServiceRequest validates the account, service and regions of a single service scan.
func ParseSingleServiceRequest(jobID string, req model.ScanRequest) (model.ScanServiceRequest, error) {
	if !validator.ValidAccountID(req.AccountID) {
		return model.ScanServiceRequest{}, apperror.Validation("Bad Request", "Invalid AWS Account ID found")
	}
	if _, ok := scanconfig.LookupService(req.ServiceName); !ok {
		return model.ScanServiceRequest{}, apperror.Validation("Bad Request", "Invalid service name")
	}
	if req.Regions == nil {
		return model.ScanServiceRequest{}, apperror.Validation("Bad Request", "No valid region")
	}
	regions, ok := scanconfig.Retain(req.Regions, scanconfig.RegionNames())
	if !ok {
		return model.ScanServiceRequest{}, apperror.Validation("Bad Request", "No valid region")
	}
	return model.ScanServiceRequest{
		JobID:          jobID,
		AssessmentType: model.AssessmentPolicyExplorerSingle,
		AccountID:      req.AccountID,
		ServiceName:    req.ServiceName,
		Regions:        regions,
	}, nil
}

func timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return model.Timestamp(*t)
}

var (
	_ Strategy = (*DelegatedAdminStrategy)(nil)
	_ Strategy = (*TrustedAccessStrategy)(nil)
	_ Strategy = (*ResourceBasedPolicyStrategy)(nil)
	_ Strategy = (*PolicyExplorerStrategy)(nil)
	_ Strategy = (*SingleServiceStrategy)(nil)
)

// StrategyFor returns the strategy of assessmentType from strategies.
func StrategyFor(assessmentType model.AssessmentType, strategies ...Strategy) (Strategy, error) {
	for _, s := range strategies {
		if s.AssessmentType() == assessmentType {
			return s, nil
		}
	}
	return nil, fmt.Errorf("no strategy for assessment type %s", assessmentType)
}
