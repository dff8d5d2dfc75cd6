// Package scantask runs the per-service scan branches of resource based policy and
// policy explorer jobs.
package scantask

import (
	"context"
	"errors"
	"fmt"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/awserrors"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/service/orgdependency"
	"github.com/thirukguru/aws-account-assessment/service/policyitems"
	"github.com/thirukguru/aws-account-assessment/service/resourcepolicy"
	"github.com/thirukguru/aws-account-assessment/service/scanconfig"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// NewService creates a scan task runner.
func NewService(sessions awsconfig.SessionProvider, registry resourcepolicy.Registry, jobRepo jobs.Service, findingRepo findings.Service, opts ...Option) Service {
	s := &service{
		sessions: sessions,
		registry: registry,
		jobs:     jobRepo,
		findings: findingRepo,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With("component", "scantask")
	return s
}

func (s *service) Run(ctx context.Context, req model.ScanServiceRequest) (model.ScanServiceResponse, error) {
	var resp model.ScanServiceResponse
	logger := s.logger.With("job_id", req.JobID, "account_id", req.AccountID, "service", req.ServiceName)

	if !s.supported(req) {
		logger.Warn("unsupported service")
		if err := s.recordFailure(ctx, req, nil, UnsupportedService); err != nil {
			return resp, err
		}
		resp.FailedRegions = 1
		return resp, nil
	}

	for _, region := range s.Regions(req) {
		count, err := s.ScanRegion(ctx, req, region)
		if err != nil {
			if errors.Is(err, ErrPersist) || ctx.Err() != nil {
				return resp, err
			}
			logger.Warn("region scan failed", "region", region, "error", err)
			if err := s.RecordFailure(ctx, req, region, err); err != nil {
				return resp, err
			}
			resp.FailedRegions++
			continue
		}
		resp.FindingsCount += count
	}
	return resp, nil
}

func (s *service) supported(req model.ScanServiceRequest) bool {
	if req.ServiceName == OrganizationsService {
		return s.scps != nil && explorerMode(req.AssessmentType)
	}
	if _, ok := scanconfig.LookupService(req.ServiceName); !ok {
		return false
	}
	_, ok := s.registry.Lookup(req.ServiceName)
	return ok
}

// Regions returns the single global region for global services, otherwise the
// de-duplicated union of Region and Regions.
func (s *service) Regions(req model.ScanServiceRequest) []string {
	if req.ServiceName == OrganizationsService || scanconfig.IsGlobal(req.ServiceName) {
		return []string{scanconfig.GlobalRegion}
	}
	var regions []string
	seen := map[string]struct{}{}
	for _, r := range append([]string{req.Region}, req.Regions...) {
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		regions = append(regions, r)
	}
	return regions
}

func (s *service) ScanRegion(ctx context.Context, req model.ScanServiceRequest, region string) (int, error) {
	if req.ServiceName == OrganizationsService {
		return s.scanServiceControlPolicies(ctx, req)
	}
	fetcher, ok := s.registry.Lookup(req.ServiceName)
	if !ok {
		return 0, errors.New(UnsupportedService)
	}

	cfg, err := s.sessions.ForAccount(ctx, req.AccountID, region)
	if err != nil {
		return 0, err
	}
	policies, err := fetcher.Fetch(ctx, cfg, req.AccountID, region)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("fetched policies", "job_id", req.JobID, "account_id", req.AccountID,
		"service", req.ServiceName, "region", region, "policies", len(policies))

	switch {
	case req.AssessmentType == model.AssessmentResourceBasedPolicy:
		return s.storeDependencies(ctx, req, region, policies)
	case explorerMode(req.AssessmentType):
		return s.storePolicyItems(ctx, req, region, policies)
	default:
		return 0, fmt.Errorf("unsupported assessment type %q", req.AssessmentType)
	}
}

func (s *service) RecordFailure(ctx context.Context, req model.ScanServiceRequest, region string, cause error) error {
	// Global services record no region.
	var regionPtr *string
	described := ""
	if !scanconfig.IsGlobal(req.ServiceName) && req.ServiceName != OrganizationsService && region != "" {
		regionPtr = &region
		described = region
	}
	return s.recordFailure(ctx, req, regionPtr, awserrors.Describe(cause, described))
}

func (s *service) recordFailure(ctx context.Context, req model.ScanServiceRequest, region *string, message string) error {
	_, err := s.jobs.CreateJobTaskFailure(ctx, model.JobTaskFailureCreateRequest{
		JobID:          req.JobID,
		AssessmentType: req.AssessmentType,
		ServiceName:    req.ServiceName,
		AccountID:      req.AccountID,
		Region:         region,
		Error:          message,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// storeDependencies writes one finding per organization condition key and value.
func (s *service) storeDependencies(ctx context.Context, req model.ScanServiceRequest, region string, policies []resourcepolicy.ResourcePolicy) (int, error) {
	var rows []model.ResourceBasedPolicyFinding
	for _, rp := range policies {
		deps, err := orgdependency.Check(rp.ResourceName, rp.Policy)
		if err != nil {
			s.logger.Warn("skipping unparsable policy", "service", req.ServiceName, "resource", rp.ResourceName, "error", err)
			continue
		}
		for _, dep := range deps {
			rows = append(rows, model.ResourceBasedPolicyFinding{
				AccountID:      req.AccountID,
				Region:         resourceRegion(rp, region),
				ServiceName:    req.ServiceName,
				ResourceName:   dep.ResourceName,
				ResourceArn:    rp.ResourceArn,
				DependencyType: dep.DependencyType,
				DependencyOn:   dep.DependencyOn,
			})
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	stored, err := s.findings.PutResourceBasedPolicies(ctx, req.JobID, rows)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return len(stored), nil
}

// storePolicyItems writes one item per statement of every policy.
func (s *service) storePolicyItems(ctx context.Context, req model.ScanServiceRequest, region string, policies []resourcepolicy.ResourcePolicy) (int, error) {
	var items []model.PolicyItem
	for _, rp := range policies {
		converted, err := s.convert(req, rp, resourceRegion(rp, region))
		if err != nil {
			s.logger.Warn("skipping policy", "service", req.ServiceName, "resource", rp.ResourceName, "error", err)
			continue
		}
		items = append(items, converted...)
	}
	if len(items) == 0 {
		return 0, nil
	}
	if err := s.findings.PutPolicyItems(ctx, items); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return len(items), nil
}

func (s *service) convert(req model.ScanServiceRequest, rp resourcepolicy.ResourcePolicy, region string) ([]model.PolicyItem, error) {
	details, err := policyitems.FromARN(rp.PolicyType, rp.ResourceArn, rp.Policy, region)
	if err != nil {
		return nil, err
	}
	if details.AccountID == "" {
		details.AccountID = req.AccountID
	}
	if details.Service == "" {
		details.Service = req.ServiceName
	}
	details.JobID = req.JobID
	return policyitems.Convert(details, 0)
}

func (s *service) scanServiceControlPolicies(ctx context.Context, req model.ScanServiceRequest) (int, error) {
	scps, err := s.scps.ListServiceControlPolicies(ctx)
	if err != nil {
		return 0, err
	}
	policies := make([]resourcepolicy.ResourcePolicy, 0, len(scps))
	for _, scp := range scps {
		policies = append(policies, resourcepolicy.ResourcePolicy{
			ResourceName: scp.Name,
			ResourceArn:  scp.Arn,
			Region:       resourcepolicy.GlobalRegion,
			PolicyType:   model.PolicyTypeServiceControl,
			Policy:       scp.Content,
		})
	}
	return s.storePolicyItems(ctx, req, resourcepolicy.GlobalRegion, policies)
}

func resourceRegion(rp resourcepolicy.ResourcePolicy, scanned string) string {
	if rp.Region != "" {
		return rp.Region
	}
	return scanned
}

func explorerMode(t model.AssessmentType) bool {
	return t == model.AssessmentPolicyExplorer || t == model.AssessmentPolicyExplorerSingle
}
