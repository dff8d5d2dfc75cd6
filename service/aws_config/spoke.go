package awsconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const sessionName = "account-assessment"

// PartitionForRegion returns the ARN partition of region.
func PartitionForRegion(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	default:
		return "aws"
	}
}

// RoleARN builds the ARN of roleName in accountID.
func RoleARN(partition, accountID, roleName string) string {
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", partition, accountID, roleName)
}

// NewSpokeSessions assumes roleName in member accounts using the credentials of base.
// Credentials are cached per account and shared by every region.
func NewSpokeSessions(base aws.Config, roleName string) SessionProvider {
	return &spokeSessions{
		base:     base,
		roleName: roleName,
		newSTS: func(cfg aws.Config) stscreds.AssumeRoleAPIClient {
			return sts.NewFromConfig(cfg)
		},
		cache: map[string]*aws.CredentialsCache{},
	}
}

func (s *spokeSessions) ForAccount(ctx context.Context, accountID, region string) (aws.Config, error) {
	if accountID == "" {
		return aws.Config{}, fmt.Errorf("account id is required")
	}
	cfg := s.base.Copy()
	if region != "" {
		cfg.Region = region
	}
	cfg.Credentials = s.credentials(accountID)
	return cfg, nil
}

func (s *spokeSessions) credentials(accountID string) *aws.CredentialsCache {
	s.mu.Lock()
	defer s.mu.Unlock()

	if creds, ok := s.cache[accountID]; ok {
		return creds
	}
	roleARN := RoleARN(PartitionForRegion(s.base.Region), accountID, s.roleName)
	provider := stscreds.NewAssumeRoleProvider(s.newSTS(s.base), roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
	})
	creds := aws.NewCredentialsCache(provider)
	s.cache[accountID] = creds
	return creds
}
