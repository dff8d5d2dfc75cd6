package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// IAMClientAPI is the interface for the AWS IAM client methods used by the fetcher.
type IAMClientAPI interface {
	ListPolicies(ctx context.Context, params *iam.ListPoliciesInput, optFns ...func(*iam.Options)) (*iam.ListPoliciesOutput, error)
	GetPolicyVersion(ctx context.Context, params *iam.GetPolicyVersionInput, optFns ...func(*iam.Options)) (*iam.GetPolicyVersionOutput, error)
	ListRoles(ctx context.Context, params *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error)
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
}

type iamFetcher struct {
	newClient func(aws.Config) IAMClientAPI
}

// NewIAMFetcher reads customer managed policies, role trust policies and inline role policies.
func NewIAMFetcher() Fetcher {
	return iamFetcher{newClient: func(cfg aws.Config) IAMClientAPI { return iam.NewFromConfig(cfg) }}
}

func (f iamFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)

	managed, err := f.managedPolicies(ctx, client)
	if err != nil {
		return nil, err
	}
	roles, err := f.rolePolicies(ctx, client)
	if err != nil {
		return nil, err
	}
	return append(managed, roles...), nil
}

func (f iamFetcher) managedPolicies(ctx context.Context, client IAMClientAPI) ([]ResourcePolicy, error) {
	policies, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*iam.ListPoliciesOutput, error) {
			return client.ListPolicies(ctx, &iam.ListPoliciesInput{Scope: iamtypes.PolicyScopeTypeLocal, Marker: token})
		},
		pagination.Shape[iam.ListPoliciesOutput, iamtypes.Policy]{
			Items:     func(o *iam.ListPoliciesOutput) []iamtypes.Policy { return o.Policies },
			Next:      func(o *iam.ListPoliciesOutput) *string { return o.Marker },
			Truncated: func(o *iam.ListPoliciesOutput) bool { return o.IsTruncated },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list IAM policies: %w", err)
	}

	var out []ResourcePolicy
	for _, p := range policies {
		version, err := client.GetPolicyVersion(ctx, &iam.GetPolicyVersionInput{
			PolicyArn: p.Arn,
			VersionId: p.DefaultVersionId,
		})
		var document *string
		if err == nil && version.PolicyVersion != nil {
			document = version.PolicyVersion.Document
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get policy version of %s: %w", aws.ToString(p.PolicyName), err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: "policy/" + aws.ToString(p.PolicyName),
			ResourceArn:  aws.ToString(p.Arn),
			Region:       GlobalRegion,
			PolicyType:   model.PolicyTypeIdentityBased,
			Policy:       decodeURLEncoded(policy),
		})
	}
	return out, nil
}

func (f iamFetcher) rolePolicies(ctx context.Context, client IAMClientAPI) ([]ResourcePolicy, error) {
	roles, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*iam.ListRolesOutput, error) {
			return client.ListRoles(ctx, &iam.ListRolesInput{Marker: token})
		},
		pagination.Shape[iam.ListRolesOutput, iamtypes.Role]{
			Items:     func(o *iam.ListRolesOutput) []iamtypes.Role { return o.Roles },
			Next:      func(o *iam.ListRolesOutput) *string { return o.Marker },
			Truncated: func(o *iam.ListRolesOutput) bool { return o.IsTruncated },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list IAM roles: %w", err)
	}

	var out []ResourcePolicy
	for _, role := range roles {
		roleName := aws.ToString(role.RoleName)
		roleArn := aws.ToString(role.Arn)
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: "role/" + roleName,
			ResourceArn:  roleArn + "/AssumeRolePolicyDocument",
			Region:       GlobalRegion,
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       decodeURLEncoded(aws.ToString(role.AssumeRolePolicyDocument)),
		})

		names, err := pagination.Collect(ctx,
			func(ctx context.Context, token *string) (*iam.ListRolePoliciesOutput, error) {
				return client.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{RoleName: role.RoleName, Marker: token})
			},
			pagination.Shape[iam.ListRolePoliciesOutput, string]{
				Items:     func(o *iam.ListRolePoliciesOutput) []string { return o.PolicyNames },
				Next:      func(o *iam.ListRolePoliciesOutput) *string { return o.Marker },
				Truncated: func(o *iam.ListRolePoliciesOutput) bool { return o.IsTruncated },
			})
		if err != nil {
			return nil, fmt.Errorf("failed to list inline policies of %s: %w", roleName, err)
		}
		for _, name := range names {
			inline, err := client.GetRolePolicy(ctx, &iam.GetRolePolicyInput{RoleName: role.RoleName, PolicyName: aws.String(name)})
			var document *string
			if err == nil {
				document = inline.PolicyDocument
			}
			policy, err := policyOrEmpty(document, err)
			if err != nil {
				return nil, fmt.Errorf("failed to get inline policy %s of %s: %w", name, roleName, err)
			}
			out = appendPolicy(out, ResourcePolicy{
				ResourceName: "role/" + roleName + "/" + name,
				ResourceArn:  roleArn + "/inline-policy/" + name,
				Region:       GlobalRegion,
				PolicyType:   model.PolicyTypeIdentityBased,
				Policy:       decodeURLEncoded(policy),
			})
		}
	}
	return out, nil
}
