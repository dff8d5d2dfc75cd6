package awsorganizations

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/organizations"
)

// OrganizationsClientAPI is the interface for the AWS Organizations client methods used by the service.
type OrganizationsClientAPI interface {
	DescribeOrganization(ctx context.Context, params *organizations.DescribeOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.DescribeOrganizationOutput, error)
	ListAccounts(ctx context.Context, params *organizations.ListAccountsInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error)
	ListAccountsForParent(ctx context.Context, params *organizations.ListAccountsForParentInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsForParentOutput, error)
	ListChildren(ctx context.Context, params *organizations.ListChildrenInput, optFns ...func(*organizations.Options)) (*organizations.ListChildrenOutput, error)
	ListDelegatedAdministrators(ctx context.Context, params *organizations.ListDelegatedAdministratorsInput, optFns ...func(*organizations.Options)) (*organizations.ListDelegatedAdministratorsOutput, error)
	ListDelegatedServicesForAccount(ctx context.Context, params *organizations.ListDelegatedServicesForAccountInput, optFns ...func(*organizations.Options)) (*organizations.ListDelegatedServicesForAccountOutput, error)
	ListAWSServiceAccessForOrganization(ctx context.Context, params *organizations.ListAWSServiceAccessForOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.ListAWSServiceAccessForOrganizationOutput, error)
	ListPolicies(ctx context.Context, params *organizations.ListPoliciesInput, optFns ...func(*organizations.Options)) (*organizations.ListPoliciesOutput, error)
	DescribePolicy(ctx context.Context, params *organizations.DescribePolicyInput, optFns ...func(*organizations.Options)) (*organizations.DescribePolicyOutput, error)
}

// Account is an organization member account.
type Account struct {
	ID     string
	Arn    string
	Name   string
	Email  string
	Status string
}

// DelegatedAdmin is an account registered as delegated administrator.
type DelegatedAdmin struct {
	AccountID       string
	Arn             string
	Email           string
	Name            string
	Status          string
	JoinedMethod    string
	JoinedTimestamp *time.Time
}

// DelegatedService is one service an administrator was delegated.
type DelegatedService struct {
	ServicePrincipal      string
	DelegationEnabledDate *time.Time
}

// TrustedService is a service principal with trusted access enabled.
type TrustedService struct {
	ServicePrincipal string
	DateEnabled      *time.Time
}

// ServiceControlPolicy is an SCP and its document.
type ServiceControlPolicy struct {
	ID      string
	Arn     string
	Name    string
	Content string
}

type service struct {
	client OrganizationsClientAPI
}

// Service is the interface for AWS Organizations reads.
type Service interface {
	ListActiveAccounts(ctx context.Context) ([]Account, error)
	AccountsForOrgUnits(ctx context.Context, orgUnitIDs []string) ([]Account, error)
	ListDelegatedAdmins(ctx context.Context) ([]DelegatedAdmin, error)
	ListDelegatedServices(ctx context.Context, accountID string) ([]DelegatedService, error)
	ListTrustedServices(ctx context.Context) ([]TrustedService, error)
	ListServiceControlPolicies(ctx context.Context) ([]ServiceControlPolicy, error)
}
