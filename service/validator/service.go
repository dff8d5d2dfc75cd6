// Package validator verifies that the spoke role can be assumed in a member account
// before any scan branch runs there.
package validator

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/service/scanconfig"
	awssts "github.com/thirukguru/aws-account-assessment/service/sts"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// ErrAccessValidation is the task failure text of an account whose identity does not match.
const ErrAccessValidation = "Access Validation Failed: Unable to assume role in this account."

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// NewService creates a validator that assumes roles through sessions and records failures in repo.
func NewService(sessions awsconfig.SessionProvider, repo jobs.Service, opts ...Option) Service {
	s := &service{
		sessions: sessions,
		jobs:     repo,
		newSTS:   awssts.NewService,
		newEC2:   func(cfg aws.Config) EC2ClientAPI { return ec2.NewFromConfig(cfg) },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With("component", "validator")
	return s
}

// ValidAccountID reports whether id is a 12 digit account id.
func ValidAccountID(id string) bool {
	return accountIDPattern.MatchString(id)
}

func (s *service) CheckAccountAccessPermission(ctx context.Context, req model.AccountValidationRequest) model.AccountValidationResponse {
	logger := s.logger.With("job_id", req.JobID, "account_id", req.AccountID)

	regions, err := s.check(ctx, req)
	if err != nil {
		logger.Warn("account validation failed", "error", err)
		s.recordFailure(ctx, req, err.Error())
		return model.AccountValidationResponse{
			Validation:               model.ValidationFailed,
			ServicesToScanForAccount: []string{},
			Regions:                  []string{},
		}
	}

	logger.Info("account validation succeeded", "regions", len(regions))
	services := req.ServiceNames
	if services == nil {
		services = []string{}
	}
	return model.AccountValidationResponse{
		Validation:               model.ValidationSucceeded,
		ServicesToScanForAccount: services,
		Regions:                  regions,
	}
}

func (s *service) check(ctx context.Context, req model.AccountValidationRequest) ([]string, error) {
	if !ValidAccountID(req.AccountID) {
		return nil, fmt.Errorf("Invalid AWS Account ID: %q", req.AccountID)
	}

	cfg, err := s.sessions.ForAccount(ctx, req.AccountID, scanconfig.GlobalRegion)
	if err != nil {
		return nil, err
	}
	caller, err := s.newSTS(cfg).AccountID(ctx)
	if err != nil {
		return nil, err
	}
	if caller != req.AccountID {
		return nil, errors.New(ErrAccessValidation)
	}

	enabled, err := s.enabledRegions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	requested := req.Regions
	if requested == nil {
		requested = scanconfig.RegionNames()
	}
	regions, _ := scanconfig.Retain(enabled, requested)
	if regions == nil {
		regions = []string{}
	}
	return regions, nil
}

// enabledRegions lists the regions enabled for the account, opt-in regions included once opted in.
func (s *service) enabledRegions(ctx context.Context, cfg aws.Config) ([]string, error) {
	out, err := s.newEC2(cfg).DescribeRegions(ctx, &ec2.DescribeRegionsInput{AllRegions: aws.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("failed to describe regions: %w", err)
	}
	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		regions = append(regions, aws.ToString(r.RegionName))
	}
	return regions, nil
}

func (s *service) recordFailure(ctx context.Context, req model.AccountValidationRequest, message string) {
	assessmentType := req.AssessmentType
	if assessmentType == "" {
		assessmentType = model.AssessmentResourceBasedPolicy
	}
	_, err := s.jobs.CreateJobTaskFailure(ctx, model.JobTaskFailureCreateRequest{
		JobID:          req.JobID,
		AssessmentType: assessmentType,
		AccountID:      req.AccountID,
		Error:          message,
	})
	if err != nil {
		s.logger.Error("failed to record task failure", "job_id", req.JobID, "account_id", req.AccountID, "error", err)
	}
}
