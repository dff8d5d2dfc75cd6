package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// VPCEndpointClientAPI is the interface for the Amazon EC2 client methods used by the fetcher.
type VPCEndpointClientAPI interface {
	DescribeVpcEndpoints(ctx context.Context, params *ec2.DescribeVpcEndpointsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error)
}

type vpcEndpointFetcher struct {
	newClient func(aws.Config) VPCEndpointClientAPI
}

// NewVPCEndpointFetcher reads VPC endpoint policies.
func NewVPCEndpointFetcher() Fetcher {
	return vpcEndpointFetcher{newClient: func(cfg aws.Config) VPCEndpointClientAPI { return ec2.NewFromConfig(cfg) }}
}

func (f vpcEndpointFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	endpoints, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*ec2.DescribeVpcEndpointsOutput, error) {
			return client.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{NextToken: token})
		},
		pagination.Shape[ec2.DescribeVpcEndpointsOutput, ec2types.VpcEndpoint]{
			Items: func(o *ec2.DescribeVpcEndpointsOutput) []ec2types.VpcEndpoint { return o.VpcEndpoints },
			Next:  func(o *ec2.DescribeVpcEndpointsOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe VPC endpoints: %w", err)
	}

	partition := awsconfig.PartitionForRegion(region)
	var out []ResourcePolicy
	for _, ep := range endpoints {
		owner := aws.ToString(ep.OwnerId)
		if owner == "" {
			owner = accountID
		}
		id := aws.ToString(ep.VpcEndpointId)
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: id,
			ResourceArn:  fmt.Sprintf("arn:%s:ec2:%s:%s:vpc-endpoint/%s", partition, region, owner, id),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       aws.ToString(ep.PolicyDocument),
		})
	}
	return out, nil
}
