package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/awserrors"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// SQSClientAPI is the interface for the AWS SQS client methods used by the fetcher.
type SQSClientAPI interface {
	ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

type sqsFetcher struct {
	newClient func(aws.Config) SQSClientAPI
}

// NewSQSFetcher reads queue access policies.
func NewSQSFetcher() Fetcher {
	return sqsFetcher{newClient: func(cfg aws.Config) SQSClientAPI { return sqs.NewFromConfig(cfg) }}
}

func (f sqsFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	urls, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*sqs.ListQueuesOutput, error) {
			// NextToken is only returned when MaxResults is set.
			return client.ListQueues(ctx, &sqs.ListQueuesInput{NextToken: token, MaxResults: aws.Int32(1000)})
		},
		pagination.Shape[sqs.ListQueuesOutput, string]{
			Items: func(o *sqs.ListQueuesOutput) []string { return o.QueueUrls },
			Next:  func(o *sqs.ListQueuesOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list queues: %w", err)
	}

	var out []ResourcePolicy
	for _, url := range urls {
		attrs, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(url),
			AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNamePolicy, sqstypes.QueueAttributeNameQueueArn},
		})
		if err != nil {
			if awserrors.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("failed to get attributes of queue %s: %w", url, err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: lastSegment(url, "/"),
			ResourceArn:  attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)],
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       attrs.Attributes[string(sqstypes.QueueAttributeNamePolicy)],
		})
	}
	return out, nil
}
