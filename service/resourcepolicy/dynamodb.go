package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// DynamoDBClientAPI is the interface for the Amazon DynamoDB client methods used by the fetcher.
type DynamoDBClientAPI interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	GetResourcePolicy(ctx context.Context, params *dynamodb.GetResourcePolicyInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetResourcePolicyOutput, error)
}

type dynamoDBFetcher struct {
	newClient func(aws.Config) DynamoDBClientAPI
}

// NewDynamoDBFetcher reads table resource policies.
func NewDynamoDBFetcher() Fetcher {
	return dynamoDBFetcher{newClient: func(cfg aws.Config) DynamoDBClientAPI { return dynamodb.NewFromConfig(cfg) }}
}

func (f dynamoDBFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	tables, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*dynamodb.ListTablesOutput, error) {
			return client.ListTables(ctx, &dynamodb.ListTablesInput{ExclusiveStartTableName: token})
		},
		pagination.Shape[dynamodb.ListTablesOutput, string]{
			Items: func(o *dynamodb.ListTablesOutput) []string { return o.TableNames },
			Next:  func(o *dynamodb.ListTablesOutput) *string { return o.LastEvaluatedTableName },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	partition := awsconfig.PartitionForRegion(region)
	var out []ResourcePolicy
	for _, table := range tables {
		arn := fmt.Sprintf("arn:%s:dynamodb:%s:%s:table/%s", partition, region, accountID, table)
		resp, err := client.GetResourcePolicy(ctx, &dynamodb.GetResourcePolicyInput{ResourceArn: aws.String(arn)})
		var document *string
		if err == nil {
			document = resp.Policy
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get policy of table %s: %w", table, err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: table,
			ResourceArn:  arn,
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}
