package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// KMSClientAPI is the interface for the AWS KMS client methods used by the fetcher.
type KMSClientAPI interface {
	ListKeys(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error)
	GetKeyPolicy(ctx context.Context, params *kms.GetKeyPolicyInput, optFns ...func(*kms.Options)) (*kms.GetKeyPolicyOutput, error)
}

type kmsFetcher struct {
	newClient func(aws.Config) KMSClientAPI
}

// NewKMSFetcher reads the default key policy of every key.
func NewKMSFetcher() Fetcher {
	return kmsFetcher{newClient: func(cfg aws.Config) KMSClientAPI { return kms.NewFromConfig(cfg) }}
}

func (f kmsFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	keys, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*kms.ListKeysOutput, error) {
			return client.ListKeys(ctx, &kms.ListKeysInput{Marker: token})
		},
		pagination.Shape[kms.ListKeysOutput, kmstypes.KeyListEntry]{
			Items:     func(o *kms.ListKeysOutput) []kmstypes.KeyListEntry { return o.Keys },
			Next:      func(o *kms.ListKeysOutput) *string { return o.NextMarker },
			Truncated: func(o *kms.ListKeysOutput) bool { return o.Truncated },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var out []ResourcePolicy
	for _, key := range keys {
		resp, err := client.GetKeyPolicy(ctx, &kms.GetKeyPolicyInput{KeyId: key.KeyId, PolicyName: aws.String("default")})
		var document *string
		if err == nil {
			document = resp.Policy
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get policy of key %s: %w", aws.ToString(key.KeyId), err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: aws.ToString(key.KeyId),
			ResourceArn:  aws.ToString(key.KeyArn),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}
