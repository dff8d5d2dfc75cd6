package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/backup"
	backuptypes "github.com/aws/aws-sdk-go-v2/service/backup/types"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// BackupClientAPI is the interface for the AWS Backup client methods used by the fetcher.
type BackupClientAPI interface {
	ListBackupVaults(ctx context.Context, params *backup.ListBackupVaultsInput, optFns ...func(*backup.Options)) (*backup.ListBackupVaultsOutput, error)
	GetBackupVaultAccessPolicy(ctx context.Context, params *backup.GetBackupVaultAccessPolicyInput, optFns ...func(*backup.Options)) (*backup.GetBackupVaultAccessPolicyOutput, error)
}

type backupFetcher struct {
	newClient func(aws.Config) BackupClientAPI
}

// NewBackupFetcher reads backup vault access policies.
func NewBackupFetcher() Fetcher {
	return backupFetcher{newClient: func(cfg aws.Config) BackupClientAPI { return backup.NewFromConfig(cfg) }}
}

func (f backupFetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	vaults, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*backup.ListBackupVaultsOutput, error) {
			return client.ListBackupVaults(ctx, &backup.ListBackupVaultsInput{NextToken: token})
		},
		pagination.Shape[backup.ListBackupVaultsOutput, backuptypes.BackupVaultListMember]{
			Items: func(o *backup.ListBackupVaultsOutput) []backuptypes.BackupVaultListMember { return o.BackupVaultList },
			Next:  func(o *backup.ListBackupVaultsOutput) *string { return o.NextToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list backup vaults: %w", err)
	}

	var out []ResourcePolicy
	for _, vault := range vaults {
		resp, err := client.GetBackupVaultAccessPolicy(ctx, &backup.GetBackupVaultAccessPolicyInput{BackupVaultName: vault.BackupVaultName})
		var document *string
		if err == nil {
			document = resp.Policy
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get access policy of vault %s: %w", aws.ToString(vault.BackupVaultName), err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: aws.ToString(vault.BackupVaultName),
			ResourceArn:  aws.ToString(vault.BackupVaultArn),
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}
