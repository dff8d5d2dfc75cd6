package awsconfig

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
)

type service struct{}

// Service is the interface for AWS configuration service.
type Service interface {
	GetAWSCfg(ctx context.Context, region string, profile string) (aws.Config, error)
}

// SessionProvider returns configs that act inside a member account.
type SessionProvider interface {
	ForAccount(ctx context.Context, accountID, region string) (aws.Config, error)
}

type spokeSessions struct {
	base     aws.Config
	roleName string
	newSTS   func(aws.Config) stscreds.AssumeRoleAPIClient

	mu    sync.Mutex
	cache map[string]*aws.CredentialsCache
}
