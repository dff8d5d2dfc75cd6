package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// SNSClientAPI is the interface for the AWS SNS client methods used by the fetcher.
type SNSClientAPI interface {
	ListTopics(ctx context.Context, params *sns.ListTopicsInput, optFns ...func(*sns.Options)) (*sns.ListTopicsOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

type snsFetcher struct {
	newClient func(aws.Config) SNSClientAPI
}

// NewSNSFetcher reads topic access policies.
func NewSNSFetcher() Fetcher {
	return snsFetcher{newClient: func(cfg aws.Config) SNSClientAPI { return sns.NewFromConfig(cfg) }}
}

func (f snsFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	topics, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*sns.ListTopicsOutput, error) {
			return client.ListTopics(ctx, &sns.ListTopicsInput{NextToken: token})
		},
		pagination.Shape[sns.ListTopicsOutput, snstypes.Topic]{
			Items: func(o *sns.ListTopicsOutput) []snstypes.Topic { return o.Topics },
			Next:  func(o *sns.ListTopicsOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}

	var out []ResourcePolicy
	for _, topic := range topics {
		arn := aws.ToString(topic.TopicArn)
		attrs, err := client.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: topic.TopicArn})
		var document *string
		if err == nil {
			document = aws.String(attrs.Attributes["Policy"])
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get attributes of topic %s: %w", arn, err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: lastSegment(arn, ":"),
			ResourceArn:  arn,
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}
