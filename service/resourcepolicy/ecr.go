package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// ECRClientAPI is the interface for the Amazon ECR client methods used by the fetcher.
type ECRClientAPI interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	GetRepositoryPolicy(ctx context.Context, params *ecr.GetRepositoryPolicyInput, optFns ...func(*ecr.Options)) (*ecr.GetRepositoryPolicyOutput, error)
}

type ecrFetcher struct {
	newClient func(aws.Config) ECRClientAPI
}

// NewECRFetcher reads repository policies.
func NewECRFetcher() Fetcher {
	return ecrFetcher{newClient: func(cfg aws.Config) ECRClientAPI { return ecr.NewFromConfig(cfg) }}
}

func (f ecrFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	repos, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*ecr.DescribeRepositoriesOutput, error) {
			return client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{NextToken: token})
		},
		pagination.Shape[ecr.DescribeRepositoriesOutput, ecrtypes.Repository]{
			Items: func(o *ecr.DescribeRepositoriesOutput) []ecrtypes.Repository { return o.Repositories },
			Next:  func(o *ecr.DescribeRepositoriesOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe repositories: %w", err)
	}

	var out []ResourcePolicy
	for _, repo := range repos {
		resp, err := client.GetRepositoryPolicy(ctx, &ecr.GetRepositoryPolicyInput{RepositoryName: repo.RepositoryName})
		var document *string
		if err == nil {
			document = resp.PolicyText
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get policy of repository %s: %w", aws.ToString(repo.RepositoryName), err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: aws.ToString(repo.RepositoryName),
			ResourceArn:  aws.ToString(repo.RepositoryArn),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}
