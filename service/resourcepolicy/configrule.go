package resourcepolicy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	cstypes "github.com/aws/aws-sdk-go-v2/service/configservice/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// ConfigClientAPI is the interface for the AWS Config client methods used by the fetcher.
type ConfigClientAPI interface {
	DescribeOrganizationConfigRules(ctx context.Context, params *configservice.DescribeOrganizationConfigRulesInput, optFns ...func(*configservice.Options)) (*configservice.DescribeOrganizationConfigRulesOutput, error)
	GetOrganizationCustomRulePolicy(ctx context.Context, params *configservice.GetOrganizationCustomRulePolicyInput, optFns ...func(*configservice.Options)) (*configservice.GetOrganizationCustomRulePolicyOutput, error)
}

type configRuleFetcher struct {
	newClient func(aws.Config) ConfigClientAPI
}

// NewConfigRuleFetcher reads the policy text of organization custom policy rules.
// Only policy texts that are JSON documents are returned.
func NewConfigRuleFetcher() Fetcher {
	return configRuleFetcher{newClient: func(cfg aws.Config) ConfigClientAPI { return configservice.NewFromConfig(cfg) }}
}

func (f configRuleFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	rules, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*configservice.DescribeOrganizationConfigRulesOutput, error) {
			return client.DescribeOrganizationConfigRules(ctx, &configservice.DescribeOrganizationConfigRulesInput{NextToken: token})
		},
		pagination.Shape[configservice.DescribeOrganizationConfigRulesOutput, cstypes.OrganizationConfigRule]{
			Items: func(o *configservice.DescribeOrganizationConfigRulesOutput) []cstypes.OrganizationConfigRule {
				return o.OrganizationConfigRules
			},
			Next: func(o *configservice.DescribeOrganizationConfigRulesOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe organization config rules: %w", err)
	}

	var out []ResourcePolicy
	for _, rule := range rules {
		if rule.OrganizationCustomPolicyRuleMetadata == nil {
			continue
		}
		resp, err := client.GetOrganizationCustomRulePolicy(ctx, &configservice.GetOrganizationCustomRulePolicyInput{
			OrganizationConfigRuleName: rule.OrganizationConfigRuleName,
		})
		var document *string
		if err == nil {
			document = resp.PolicyText
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get policy of config rule %s: %w", aws.ToString(rule.OrganizationConfigRuleName), err)
		}
		if !json.Valid([]byte(policy)) {
			continue
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: aws.ToString(rule.OrganizationConfigRuleName),
			ResourceArn:  aws.ToString(rule.OrganizationConfigRuleArn),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}
