// Package awsconfig loads the hub account configuration and the role sessions
// used inside member accounts.
package awsconfig

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const (
	// DefaultRegion is used when neither the flags, the environment nor the profile name one.
	DefaultRegion = "us-east-1"
	appID         = "aws-account-assessment"
	// retryMaxAttempts bounds the adaptive retries of every client.
	retryMaxAttempts = 5
)

// loadSharedConfigProfile is a variable to allow mocking in tests.
var loadSharedConfigProfile = config.LoadSharedConfigProfile

// NewService creates a new AWS configuration service.
func NewService() Service {
	return &service{}
}

// GetAWSCfg loads the hub configuration for profile. Profiles that assume a role
// with MFA prompt for the token on stdin before any scan starts.
func (s *service) GetAWSCfg(ctx context.Context, region, profile string) (aws.Config, error) {
	if profile != "" {
		shared, err := loadSharedConfigProfile(ctx, profile)
		if err == nil && shared.RoleARN != "" && shared.MFASerial != "" {
			return s.loadWithMFA(ctx, region, shared)
		}
	}

	opts := baseOptions(region)
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	opts = append(opts, config.WithAssumeRoleCredentialOptions(func(o *stscreds.AssumeRoleOptions) {
		o.TokenProvider = stscreds.StdinTokenProvider
	}))

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return finalize(ctx, cfg)
}

// loadWithMFA assumes the profile's role from its source profile with an MFA token.
func (s *service) loadWithMFA(ctx context.Context, region string, shared config.SharedConfig) (aws.Config, error) {
	sourceProfile := shared.SourceProfileName
	if sourceProfile == "" {
		sourceProfile = "default"
	}
	target := firstNonEmpty(region, shared.Region, DefaultRegion)

	sourceCfg, err := config.LoadDefaultConfig(ctx, append(baseOptions(target), config.WithSharedConfigProfile(sourceProfile))...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load source profile %s: %w", sourceProfile, err)
	}

	provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(sourceCfg), shared.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		o.SerialNumber = aws.String(shared.MFASerial)
		o.TokenProvider = stscreds.StdinTokenProvider
		o.RoleSessionName = appID
	})
	cfg, err := config.LoadDefaultConfig(ctx, append(baseOptions(target),
		config.WithCredentialsProvider(aws.NewCredentialsCache(provider)))...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load config for %s with mfa: %w", shared.Profile, err)
	}
	return finalize(ctx, cfg)
}

func baseOptions(region string) []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{
		config.WithAppID(appID),
		config.WithRetryMode(aws.RetryModeAdaptive),
		config.WithRetryMaxAttempts(retryMaxAttempts),
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	return opts
}

// finalize defaults the region and resolves credentials so that MFA prompts and
// missing credentials surface before the spinner starts.
func finalize(ctx context.Context, cfg aws.Config) (aws.Config, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Credentials != nil {
		if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
			return aws.Config{}, fmt.Errorf("failed to retrieve credentials: %w", err)
		}
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
