package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// EventBridgeClientAPI is the interface for the Amazon EventBridge client methods used by the fetcher.
type EventBridgeClientAPI interface {
	ListEventBuses(ctx context.Context, params *eventbridge.ListEventBusesInput, optFns ...func(*eventbridge.Options)) (*eventbridge.ListEventBusesOutput, error)
}

type eventBusFetcher struct {
	newClient func(aws.Config) EventBridgeClientAPI
}

// NewEventBusFetcher reads event bus policies.
func NewEventBusFetcher() Fetcher {
	return eventBusFetcher{newClient: func(cfg aws.Config) EventBridgeClientAPI { return eventbridge.NewFromConfig(cfg) }}
}

func (f eventBusFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	buses, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*eventbridge.ListEventBusesOutput, error) {
			return client.ListEventBuses(ctx, &eventbridge.ListEventBusesInput{NextToken: token})
		},
		pagination.Shape[eventbridge.ListEventBusesOutput, ebtypes.EventBus]{
			Items: func(o *eventbridge.ListEventBusesOutput) []ebtypes.EventBus { return o.EventBuses },
			Next:  func(o *eventbridge.ListEventBusesOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list event buses: %w", err)
	}

	var out []ResourcePolicy
	for _, bus := range buses {
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: aws.ToString(bus.Name),
			ResourceArn:  aws.ToString(bus.Arn),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       aws.ToString(bus.Policy),
		})
	}
	return out, nil
}
