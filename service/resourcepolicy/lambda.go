package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// LambdaClientAPI is the interface for the AWS Lambda client methods used by the fetcher.
type LambdaClientAPI interface {
	ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
	GetPolicy(ctx context.Context, params *lambda.GetPolicyInput, optFns ...func(*lambda.Options)) (*lambda.GetPolicyOutput, error)
}

type lambdaFetcher struct {
	newClient func(aws.Config) LambdaClientAPI
}

// NewLambdaFetcher reads function resource policies.
func NewLambdaFetcher() Fetcher {
	return lambdaFetcher{newClient: func(cfg aws.Config) LambdaClientAPI { return lambda.NewFromConfig(cfg) }}
}

func (f lambdaFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	functions, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*lambda.ListFunctionsOutput, error) {
			return client.ListFunctions(ctx, &lambda.ListFunctionsInput{Marker: token})
		},
		pagination.Shape[lambda.ListFunctionsOutput, lambdatypes.FunctionConfiguration]{
			Items: func(o *lambda.ListFunctionsOutput) []lambdatypes.FunctionConfiguration { return o.Functions },
			Next:  func(o *lambda.ListFunctionsOutput) *string { return o.NextMarker },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list functions: %w", err)
	}

	var out []ResourcePolicy
	for _, fn := range functions {
		resp, err := client.GetPolicy(ctx, &lambda.GetPolicyInput{FunctionName: fn.FunctionName})
		var document *string
		if err == nil {
			document = resp.Policy
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get policy of function %s: %w", aws.ToString(fn.FunctionName), err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: aws.ToString(fn.FunctionName),
			ResourceArn:  aws.ToString(fn.FunctionArn),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}
