package awsorganizations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrgClient struct {
	OrganizationsClientAPI

	masterAccount string
	accountPages  [][]orgtypes.Account
	byParent      map[string][]orgtypes.Account
	children      map[string][]string
	admins        []orgtypes.DelegatedAdministrator
	delegated     map[string][]orgtypes.DelegatedService
	trusted       []orgtypes.EnabledServicePrincipal
	policies      []orgtypes.PolicySummary
	contents      map[string]string
	listErr       error
}

func (f *fakeOrgClient) DescribeOrganization(ctx context.Context, params *organizations.DescribeOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.DescribeOrganizationOutput, error) {
	return &organizations.DescribeOrganizationOutput{Organization: &orgtypes.Organization{
		MasterAccountId: aws.String(f.masterAccount),
	}}, nil
}

func (f *fakeOrgClient) ListAccounts(ctx context.Context, params *organizations.ListAccountsInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	page := 0
	if params.NextToken != nil {
		page = int((*params.NextToken)[0] - '0')
	}
	out := &organizations.ListAccountsOutput{Accounts: f.accountPages[page]}
	if page+1 < len(f.accountPages) {
		out.NextToken = aws.String(string(rune('0' + page + 1)))
	}
	return out, nil
}

func (f *fakeOrgClient) ListAccountsForParent(ctx context.Context, params *organizations.ListAccountsForParentInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsForParentOutput, error) {
	return &organizations.ListAccountsForParentOutput{Accounts: f.byParent[aws.ToString(params.ParentId)]}, nil
}

func (f *fakeOrgClient) ListChildren(ctx context.Context, params *organizations.ListChildrenInput, optFns ...func(*organizations.Options)) (*organizations.ListChildrenOutput, error) {
	var children []orgtypes.Child
	for _, id := range f.children[aws.ToString(params.ParentId)] {
		children = append(children, orgtypes.Child{Id: aws.String(id), Type: orgtypes.ChildTypeOrganizationalUnit})
	}
	return &organizations.ListChildrenOutput{Children: children}, nil
}

func (f *fakeOrgClient) ListDelegatedAdministrators(ctx context.Context, params *organizations.ListDelegatedAdministratorsInput, optFns ...func(*organizations.Options)) (*organizations.ListDelegatedAdministratorsOutput, error) {
	return &organizations.ListDelegatedAdministratorsOutput{DelegatedAdministrators: f.admins}, nil
}

func (f *fakeOrgClient) ListDelegatedServicesForAccount(ctx context.Context, params *organizations.ListDelegatedServicesForAccountInput, optFns ...func(*organizations.Options)) (*organizations.ListDelegatedServicesForAccountOutput, error) {
	return &organizations.ListDelegatedServicesForAccountOutput{DelegatedServices: f.delegated[aws.ToString(params.AccountId)]}, nil
}

func (f *fakeOrgClient) ListAWSServiceAccessForOrganization(ctx context.Context, params *organizations.ListAWSServiceAccessForOrganizationInput, optFns ...func(*organizations.Options)) (*organizations.ListAWSServiceAccessForOrganizationOutput, error) {
	return &organizations.ListAWSServiceAccessForOrganizationOutput{EnabledServicePrincipals: f.trusted}, nil
}

func (f *fakeOrgClient) ListPolicies(ctx context.Context, params *organizations.ListPoliciesInput, optFns ...func(*organizations.Options)) (*organizations.ListPoliciesOutput, error) {
	if params.Filter != orgtypes.PolicyTypeServiceControlPolicy {
		return nil, errors.New("unexpected filter")
	}
	return &organizations.ListPoliciesOutput{Policies: f.policies}, nil
}

func (f *fakeOrgClient) DescribePolicy(ctx context.Context, params *organizations.DescribePolicyInput, optFns ...func(*organizations.Options)) (*organizations.DescribePolicyOutput, error) {
	id := aws.ToString(params.PolicyId)
	return &organizations.DescribePolicyOutput{Policy: &orgtypes.Policy{Content: aws.String(f.contents[id])}}, nil
}

func account(id string, status orgtypes.AccountStatus) orgtypes.Account {
	return orgtypes.Account{Id: aws.String(id), Status: status, Name: aws.String("acct-" + id)}
}

func TestListActiveAccountsFollowsPagesAndFiltersStatus(t *testing.T) {
	client := &fakeOrgClient{accountPages: [][]orgtypes.Account{
		{account("111111111111", orgtypes.AccountStatusActive), account("222222222222", orgtypes.AccountStatusSuspended)},
		{account("333333333333", orgtypes.AccountStatusActive)},
	}}

	accounts, err := NewServiceWithClient(client).ListActiveAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"111111111111", "333333333333"}, AccountIDs(accounts))
}

func TestListActiveAccountsPropagatesErrors(t *testing.T) {
	client := &fakeOrgClient{listErr: errors.New("AccessDenied")}
	_, err := NewServiceWithClient(client).ListActiveAccounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")
}

func TestAccountsForOrgUnitsIsRecursive(t *testing.T) {
	client := &fakeOrgClient{
		byParent: map[string][]orgtypes.Account{
			"ou-root-11111111": {account("111111111111", orgtypes.AccountStatusActive)},
			"ou-root-22222222": {account("222222222222", orgtypes.AccountStatusActive), account("444444444444", orgtypes.AccountStatusSuspended)},
			"ou-root-33333333": {account("333333333333", orgtypes.AccountStatusActive), account("111111111111", orgtypes.AccountStatusActive)},
		},
		children: map[string][]string{
			"ou-root-11111111": {"ou-root-22222222"},
			"ou-root-22222222": {"ou-root-33333333"},
		},
	}

	accounts, err := NewServiceWithClient(client).AccountsForOrgUnits(context.Background(), []string{"ou-root-11111111"})
	require.NoError(t, err)
	assert.Equal(t, []string{"111111111111", "222222222222", "333333333333"}, AccountIDs(accounts))
}

func TestListDelegatedAdminsAndServices(t *testing.T) {
	joined := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	client := &fakeOrgClient{
		admins: []orgtypes.DelegatedAdministrator{{
			Id:              aws.String("111111111111"),
			Arn:             aws.String("arn:aws:organizations::999999999999:account/o-abc/111111111111"),
			Email:           aws.String("sec@example.com"),
			Name:            aws.String("security"),
			Status:          orgtypes.AccountStatusActive,
			JoinedMethod:    orgtypes.AccountJoinedMethodInvited,
			JoinedTimestamp: &joined,
		}},
		delegated: map[string][]orgtypes.DelegatedService{
			"111111111111": {{ServicePrincipal: aws.String("guardduty.amazonaws.com"), DelegationEnabledDate: &joined}},
		},
	}
	svc := NewServiceWithClient(client)

	admins, err := svc.ListDelegatedAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "111111111111", admins[0].AccountID)
	assert.Equal(t, "INVITED", admins[0].JoinedMethod)

	services, err := svc.ListDelegatedServices(context.Background(), "111111111111")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "guardduty.amazonaws.com", services[0].ServicePrincipal)
}

func TestListTrustedServices(t *testing.T) {
	client := &fakeOrgClient{trusted: []orgtypes.EnabledServicePrincipal{
		{ServicePrincipal: aws.String("config.amazonaws.com")},
		{ServicePrincipal: aws.String("sso.amazonaws.com")},
	}}

	trusted, err := NewServiceWithClient(client).ListTrustedServices(context.Background())
	require.NoError(t, err)
	require.Len(t, trusted, 2)
	assert.Equal(t, "sso.amazonaws.com", trusted[1].ServicePrincipal)
}

func TestListServiceControlPolicies(t *testing.T) {
	client := &fakeOrgClient{
		policies: []orgtypes.PolicySummary{{Id: aws.String("p-1"), Name: aws.String("FullAWSAccess"), Arn: aws.String("arn:aws:organizations::aws:policy/service_control_policy/p-1")}},
		contents: map[string]string{"p-1": `{"Statement":[{"Effect":"Allow","Action":"*","Resource":"*"}]}`},
	}

	scps, err := NewServiceWithClient(client).ListServiceControlPolicies(context.Background())
	require.NoError(t, err)
	require.Len(t, scps, 1)
	assert.Equal(t, "FullAWSAccess", scps[0].Name)
	assert.Contains(t, scps[0].Content, `"Action":"*"`)
}

type fakeAssumeRole struct {
	roleARN string
}

func (f *fakeAssumeRole) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.roleARN = aws.ToString(params.RoleArn)
	return &sts.AssumeRoleOutput{Credentials: &ststypes.Credentials{
		AccessKeyId:     aws.String("AKID"),
		SecretAccessKey: aws.String("secret"),
		SessionToken:    aws.String("token"),
		Expiration:      aws.Time(time.Now().Add(time.Hour)),
	}}, nil
}

func TestManagementConfig(t *testing.T) {
	client := &fakeOrgClient{masterAccount: "999999999999"}
	base := aws.Config{Region: "us-east-1"}

	same, err := ManagementConfig(context.Background(), base, "", client, &fakeAssumeRole{})
	require.NoError(t, err)
	assert.Nil(t, same.Credentials)

	stsClient := &fakeAssumeRole{}
	cfg, err := ManagementConfig(context.Background(), base, "OrgReader", client, stsClient)
	require.NoError(t, err)
	_, err = cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::999999999999:role/OrgReader", stsClient.roleARN)
}
