package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// SecretsManagerClientAPI is the interface for the AWS Secrets Manager client methods used by the fetcher.
type SecretsManagerClientAPI interface {
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	GetResourcePolicy(ctx context.Context, params *secretsmanager.GetResourcePolicyInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetResourcePolicyOutput, error)
}

type secretsManagerFetcher struct {
	newClient func(aws.Config) SecretsManagerClientAPI
}

// NewSecretsManagerFetcher reads secret resource policies.
func NewSecretsManagerFetcher() Fetcher {
	return secretsManagerFetcher{newClient: func(cfg aws.Config) SecretsManagerClientAPI { return secretsmanager.NewFromConfig(cfg) }}
}

func (f secretsManagerFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	secrets, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*secretsmanager.ListSecretsOutput, error) {
			return client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{NextToken: token})
		},
		pagination.Shape[secretsmanager.ListSecretsOutput, smtypes.SecretListEntry]{
			Items: func(o *secretsmanager.ListSecretsOutput) []smtypes.SecretListEntry { return o.SecretList },
			Next:  func(o *secretsmanager.ListSecretsOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	var out []ResourcePolicy
	for _, secret := range secrets {
		resp, err := client.GetResourcePolicy(ctx, &secretsmanager.GetResourcePolicyInput{SecretId: secret.ARN})
		var document *string
		if err == nil {
			document = resp.ResourcePolicy
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get policy of secret %s: %w", aws.ToString(secret.Name), err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: aws.ToString(secret.Name),
			ResourceArn:  aws.ToString(secret.ARN),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}
