package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigateway/types"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// APIGatewayClientAPI is the interface for the Amazon API Gateway client methods used by the fetcher.
type APIGatewayClientAPI interface {
	GetRestApis(ctx context.Context, params *apigateway.GetRestApisInput, optFns ...func(*apigateway.Options)) (*apigateway.GetRestApisOutput, error)
}

type apiGatewayFetcher struct {
	newClient func(aws.Config) APIGatewayClientAPI
}

// NewAPIGatewayFetcher reads REST API resource policies.
func NewAPIGatewayFetcher() Fetcher {
	return apiGatewayFetcher{newClient: func(cfg aws.Config) APIGatewayClientAPI { return apigateway.NewFromConfig(cfg) }}
}

func (f apiGatewayFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	apis, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*apigateway.GetRestApisOutput, error) {
			return client.GetRestApis(ctx, &apigateway.GetRestApisInput{Position: token, Limit: aws.Int32(500)})
		},
		pagination.Shape[apigateway.GetRestApisOutput, apigwtypes.RestApi]{
			Items: func(o *apigateway.GetRestApisOutput) []apigwtypes.RestApi { return o.Items },
			Next:  func(o *apigateway.GetRestApisOutput) *string { return o.Position },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list REST APIs: %w", err)
	}

	partition := awsconfig.PartitionForRegion(region)
	var out []ResourcePolicy
	for _, api := range apis {
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: aws.ToString(api.Name),
			ResourceArn:  fmt.Sprintf("arn:%s:apigateway:%s::/restapis/%s", partition, region, aws.ToString(api.Id)),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       unescapePolicy(aws.ToString(api.Policy)),
		})
	}
	return out, nil
}
