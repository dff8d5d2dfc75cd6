// Package awsorganizations reads accounts, delegated administrators, trusted access and
// service control policies of an AWS Organization.
package awsorganizations

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"

	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// NewService creates a new Organizations service.
func NewService(cfg aws.Config) Service {
	return NewServiceWithClient(organizations.NewFromConfig(cfg))
}

// NewServiceWithClient creates a service on an existing client.
func NewServiceWithClient(client OrganizationsClientAPI) Service {
	return &service{client: client}
}

// ManagementConfig returns cfg acting as roleName in the organization's management
// account. An empty roleName returns cfg unchanged.
func ManagementConfig(ctx context.Context, cfg aws.Config, roleName string, client OrganizationsClientAPI, stsClient stscreds.AssumeRoleAPIClient) (aws.Config, error) {
	if roleName == "" {
		return cfg, nil
	}
	out, err := client.DescribeOrganization(ctx, &organizations.DescribeOrganizationInput{})
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to describe organization: %w", err)
	}
	if out.Organization == nil || aws.ToString(out.Organization.MasterAccountId) == "" {
		return aws.Config{}, fmt.Errorf("organization has no management account")
	}

	roleARN := awsconfig.RoleARN(awsconfig.PartitionForRegion(cfg.Region), aws.ToString(out.Organization.MasterAccountId), roleName)
	provider := stscreds.NewAssumeRoleProvider(stsClient, roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = "account-assessment-org"
	})
	mgmt := cfg.Copy()
	mgmt.Credentials = aws.NewCredentialsCache(provider)
	return mgmt, nil
}

func (s *service) ListActiveAccounts(ctx context.Context) ([]Account, error) {
	accounts, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*organizations.ListAccountsOutput, error) {
			return s.client.ListAccounts(ctx, &organizations.ListAccountsInput{NextToken: token})
		},
		pagination.Shape[organizations.ListAccountsOutput, orgtypes.Account]{
			Items: func(o *organizations.ListAccountsOutput) []orgtypes.Account { return o.Accounts },
			Next:  func(o *organizations.ListAccountsOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return activeOnly(accounts), nil
}

// AccountsForOrgUnits returns the active accounts under every OU, including nested OUs.
func (s *service) AccountsForOrgUnits(ctx context.Context, orgUnitIDs []string) ([]Account, error) {
	var (
		result []Account
		seen   = map[string]struct{}{}
		queue  = append([]string(nil), orgUnitIDs...)
	)
	visited := map[string]struct{}{}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		if _, ok := visited[parent]; ok {
			continue
		}
		visited[parent] = struct{}{}

		accounts, err := s.accountsForParent(ctx, parent)
		if err != nil {
			return nil, err
		}
		for _, a := range activeOnly(accounts) {
			if _, dup := seen[a.ID]; dup {
				continue
			}
			seen[a.ID] = struct{}{}
			result = append(result, a)
		}

		children, err := s.childOrgUnits(ctx, parent)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}
	return result, nil
}

func (s *service) accountsForParent(ctx context.Context, parentID string) ([]orgtypes.Account, error) {
	accounts, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*organizations.ListAccountsForParentOutput, error) {
			return s.client.ListAccountsForParent(ctx, &organizations.ListAccountsForParentInput{
				ParentId:  aws.String(parentID),
				NextToken: token,
			})
		},
		pagination.Shape[organizations.ListAccountsForParentOutput, orgtypes.Account]{
			Items: func(o *organizations.ListAccountsForParentOutput) []orgtypes.Account { return o.Accounts },
			Next:  func(o *organizations.ListAccountsForParentOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for %s: %w", parentID, err)
	}
	return accounts, nil
}

func (s *service) childOrgUnits(ctx context.Context, parentID string) ([]string, error) {
	children, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*organizations.ListChildrenOutput, error) {
			return s.client.ListChildren(ctx, &organizations.ListChildrenInput{
				ParentId:  aws.String(parentID),
				ChildType: orgtypes.ChildTypeOrganizationalUnit,
				NextToken: token,
			})
		},
		pagination.Shape[organizations.ListChildrenOutput, orgtypes.Child]{
			Items: func(o *organizations.ListChildrenOutput) []orgtypes.Child { return o.Children },
			Next:  func(o *organizations.ListChildrenOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list child OUs of %s: %w", parentID, err)
	}
	ids := make([]string, 0, len(children))
	for _, c := range children {
		ids = append(ids, aws.ToString(c.Id))
	}
	return ids, nil
}

func (s *service) ListDelegatedAdmins(ctx context.Context) ([]DelegatedAdmin, error) {
	admins, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*organizations.ListDelegatedAdministratorsOutput, error) {
			return s.client.ListDelegatedAdministrators(ctx, &organizations.ListDelegatedAdministratorsInput{NextToken: token})
		},
		pagination.Shape[organizations.ListDelegatedAdministratorsOutput, orgtypes.DelegatedAdministrator]{
			Items: func(o *organizations.ListDelegatedAdministratorsOutput) []orgtypes.DelegatedAdministrator {
				return o.DelegatedAdministrators
			},
			Next: func(o *organizations.ListDelegatedAdministratorsOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list delegated administrators: %w", err)
	}

	result := make([]DelegatedAdmin, 0, len(admins))
	for _, a := range admins {
		result = append(result, DelegatedAdmin{
			AccountID:       aws.ToString(a.Id),
			Arn:             aws.ToString(a.Arn),
			Email:           aws.ToString(a.Email),
			Name:            aws.ToString(a.Name),
			Status:          string(a.Status),
			JoinedMethod:    string(a.JoinedMethod),
			JoinedTimestamp: a.JoinedTimestamp,
		})
	}
	return result, nil
}

func (s *service) ListDelegatedServices(ctx context.Context, accountID string) ([]DelegatedService, error) {
	services, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*organizations.ListDelegatedServicesForAccountOutput, error) {
			return s.client.ListDelegatedServicesForAccount(ctx, &organizations.ListDelegatedServicesForAccountInput{
				AccountId: aws.String(accountID),
				NextToken: token,
			})
		},
		pagination.Shape[organizations.ListDelegatedServicesForAccountOutput, orgtypes.DelegatedService]{
			Items: func(o *organizations.ListDelegatedServicesForAccountOutput) []orgtypes.DelegatedService {
				return o.DelegatedServices
			},
			Next: func(o *organizations.ListDelegatedServicesForAccountOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list delegated services for %s: %w", accountID, err)
	}

	result := make([]DelegatedService, 0, len(services))
	for _, svc := range services {
		result = append(result, DelegatedService{
			ServicePrincipal:      aws.ToString(svc.ServicePrincipal),
			DelegationEnabledDate: svc.DelegationEnabledDate,
		})
	}
	return result, nil
}

func (s *service) ListTrustedServices(ctx context.Context) ([]TrustedService, error) {
	principals, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*organizations.ListAWSServiceAccessForOrganizationOutput, error) {
			return s.client.ListAWSServiceAccessForOrganization(ctx, &organizations.ListAWSServiceAccessForOrganizationInput{NextToken: token})
		},
		pagination.Shape[organizations.ListAWSServiceAccessForOrganizationOutput, orgtypes.EnabledServicePrincipal]{
			Items: func(o *organizations.ListAWSServiceAccessForOrganizationOutput) []orgtypes.EnabledServicePrincipal {
				return o.EnabledServicePrincipals
			},
			Next: func(o *organizations.ListAWSServiceAccessForOrganizationOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted services: %w", err)
	}

	result := make([]TrustedService, 0, len(principals))
	for _, p := range principals {
		result = append(result, TrustedService{
			ServicePrincipal: aws.ToString(p.ServicePrincipal),
			DateEnabled:      p.DateEnabled,
		})
	}
	return result, nil
}

func (s *service) ListServiceControlPolicies(ctx context.Context) ([]ServiceControlPolicy, error) {
	summaries, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*organizations.ListPoliciesOutput, error) {
			return s.client.ListPolicies(ctx, &organizations.ListPoliciesInput{
				Filter:    orgtypes.PolicyTypeServiceControlPolicy,
				NextToken: token,
			})
		},
		pagination.Shape[organizations.ListPoliciesOutput, orgtypes.PolicySummary]{
			Items: func(o *organizations.ListPoliciesOutput) []orgtypes.PolicySummary { return o.Policies },
			Next:  func(o *organizations.ListPoliciesOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list service control policies: %w", err)
	}

	result := make([]ServiceControlPolicy, 0, len(summaries))
	for _, summary := range summaries {
		detail, err := s.client.DescribePolicy(ctx, &organizations.DescribePolicyInput{PolicyId: summary.Id})
		if err != nil {
			return nil, fmt.Errorf("failed to describe policy %s: %w", aws.ToString(summary.Id), err)
		}
		if detail.Policy == nil {
			continue
		}
		result = append(result, ServiceControlPolicy{
			ID:      aws.ToString(summary.Id),
			Arn:     aws.ToString(summary.Arn),
			Name:    aws.ToString(summary.Name),
			Content: aws.ToString(detail.Policy.Content),
		})
	}
	return result, nil
}

func activeOnly(accounts []orgtypes.Account) []Account {
	result := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Status != orgtypes.AccountStatusActive {
			continue
		}
		result = append(result, Account{
			ID:     aws.ToString(a.Id),
			Arn:    aws.ToString(a.Arn),
			Name:   aws.ToString(a.Name),
			Email:  aws.ToString(a.Email),
			Status: string(a.Status),
		})
	}
	return result
}

// AccountIDs returns the ids of accounts in order.
func AccountIDs(accounts []Account) []string {
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids
}
