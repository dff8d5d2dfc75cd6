package resourcepolicy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/awserrors"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// SESClientAPI is the interface for the Amazon SES client methods used by the fetcher.
type SESClientAPI interface {
	ListIdentities(ctx context.Context, params *ses.ListIdentitiesInput, optFns ...func(*ses.Options)) (*ses.ListIdentitiesOutput, error)
	ListIdentityPolicies(ctx context.Context, params *ses.ListIdentityPoliciesInput, optFns ...func(*ses.Options)) (*ses.ListIdentityPoliciesOutput, error)
	GetIdentityPolicies(ctx context.Context, params *ses.GetIdentityPoliciesInput, optFns ...func(*ses.Options)) (*ses.GetIdentityPoliciesOutput, error)
}

type sesFetcher struct {
	newClient func(aws.Config) SESClientAPI
}

// NewSESFetcher reads sending authorization policies. The policies of one identity
// are merged into a single document.
func NewSESFetcher() Fetcher {
	return sesFetcher{newClient: func(cfg aws.Config) SESClientAPI { return ses.NewFromConfig(cfg) }}
}

func (f sesFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	identities, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*ses.ListIdentitiesOutput, error) {
			return client.ListIdentities(ctx, &ses.ListIdentitiesInput{NextToken: token})
		},
		pagination.Shape[ses.ListIdentitiesOutput, string]{
			Items: func(o *ses.ListIdentitiesOutput) []string { return o.Identities },
			Next:  func(o *ses.ListIdentitiesOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	partition := awsconfig.PartitionForRegion(region)
	var out []ResourcePolicy
	for _, identity := range identities {
		names, err := client.ListIdentityPolicies(ctx, &ses.ListIdentityPoliciesInput{Identity: aws.String(identity)})
		if err != nil {
			if awserrors.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("failed to list policies of identity %s: %w", identity, err)
		}
		if len(names.PolicyNames) == 0 {
			continue
		}
		resp, err := client.GetIdentityPolicies(ctx, &ses.GetIdentityPoliciesInput{
			Identity:    aws.String(identity),
			PolicyNames: names.PolicyNames,
		})
		if err != nil {
			if awserrors.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("failed to get policies of identity %s: %w", identity, err)
		}
		policy, err := mergePolicies(resp.Policies)
		if err != nil {
			return nil, fmt.Errorf("identity %s: %w", identity, err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: identity,
			ResourceArn:  fmt.Sprintf("arn:%s:ses:%s:%s:identity/%s", partition, region, accountID, identity),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}

// mergePolicies concatenates the statements of several documents, ordered by policy name.
func mergePolicies(policies map[string]string) (string, error) {
	if len(policies) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := model.PolicyDocument{Version: "2012-10-17"}
	for _, name := range names {
		var doc model.PolicyDocument
		if err := json.Unmarshal([]byte(policies[name]), &doc); err != nil {
			return "", fmt.Errorf("failed to parse policy %s: %w", name, err)
		}
		if doc.Version != "" {
			merged.Version = doc.Version
		}
		merged.Statement = append(merged.Statement, doc.Statement...)
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
