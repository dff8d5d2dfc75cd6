package validator

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	awssts "github.com/thirukguru/aws-account-assessment/service/sts"
)

// EC2ClientAPI is the interface for the AWS EC2 client methods used by the validator.
type EC2ClientAPI interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// Service checks that a member account can be scanned.
type Service interface {
	CheckAccountAccessPermission(ctx context.Context, req model.AccountValidationRequest) model.AccountValidationResponse
}

// Option customizes the validator.
type Option func(*service)

// WithSTS overrides the STS constructor.
func WithSTS(newSTS func(aws.Config) awssts.Service) Option {
	return func(s *service) { s.newSTS = newSTS }
}

// WithEC2 overrides the EC2 client constructor.
func WithEC2(newEC2 func(aws.Config) EC2ClientAPI) Option {
	return func(s *service) { s.newEC2 = newEC2 }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

type service struct {
	sessions awsconfig.SessionProvider
	jobs     jobs.Service
	newSTS   func(aws.Config) awssts.Service
	newEC2   func(aws.Config) EC2ClientAPI
	logger   *slog.Logger
}
