package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// LogsClientAPI is the interface for the Amazon CloudWatch Logs client methods used by the fetcher.
type LogsClientAPI interface {
	DescribeResourcePolicies(ctx context.Context, params *cloudwatchlogs.DescribeResourcePoliciesInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeResourcePoliciesOutput, error)
}

type logsFetcher struct {
	newClient func(aws.Config) LogsClientAPI
}

// NewLogsFetcher reads CloudWatch Logs account resource policies.
func NewLogsFetcher() Fetcher {
	return logsFetcher{newClient: func(cfg aws.Config) LogsClientAPI { return cloudwatchlogs.NewFromConfig(cfg) }}
}

func (f logsFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	policies, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*cloudwatchlogs.DescribeResourcePoliciesOutput, error) {
			return client.DescribeResourcePolicies(ctx, &cloudwatchlogs.DescribeResourcePoliciesInput{NextToken: token})
		},
		pagination.Shape[cloudwatchlogs.DescribeResourcePoliciesOutput, cwltypes.ResourcePolicy]{
			Items: func(o *cloudwatchlogs.DescribeResourcePoliciesOutput) []cwltypes.ResourcePolicy { return o.ResourcePolicies },
			Next:  func(o *cloudwatchlogs.DescribeResourcePoliciesOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe log resource policies: %w", err)
	}

	partition := awsconfig.PartitionForRegion(region)
	var out []ResourcePolicy
	for _, p := range policies {
		name := aws.ToString(p.PolicyName)
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: name,
			ResourceArn:  fmt.Sprintf("arn:%s:logs:%s:%s:resource-policy/%s", partition, region, accountID, name),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       aws.ToString(p.PolicyDocument),
		})
	}
	return out, nil
}
