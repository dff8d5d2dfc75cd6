// Package scanconfig holds the supported service and region catalog and saved scan configurations.
package scanconfig

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
)

var configurationNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// NewService creates the scan configuration repository.
func NewService(table storage.Table, ttlDays int) Service {
	return &service{table: table, ttlDays: ttlDays, now: time.Now}
}

// ValidConfigurationName reports whether name may be used as a configuration name.
func ValidConfigurationName(name string) bool {
	return configurationNamePattern.MatchString(name)
}

func (s *service) Save(ctx context.Context, req model.ScanRequest) (model.ScanConfig, error) {
	if !ValidConfigurationName(req.ConfigurationName) {
		return model.ScanConfig{}, apperror.Validation("Validation Error", "Invalid configuration name.")
	}
	cfg := model.ScanConfig{
		TableKeys: model.TableKeys{
			PartitionKey: PartitionScanConfigs,
			SortKey:      req.ConfigurationName,
			ExpiresAt:    storage.ExpiresAt(s.now(), s.ttlDays),
		},
		ConfigurationName: req.ConfigurationName,
		AccountIDs:        req.AccountIDs,
		OrgUnitIDs:        req.OrgUnitIDs,
		Regions:           req.Regions,
		ServiceNames:      req.ServiceNames,
	}
	item, err := storage.Encode(cfg)
	if err != nil {
		return model.ScanConfig{}, err
	}
	if err := s.table.PutItem(ctx, item); err != nil {
		return model.ScanConfig{}, fmt.Errorf("failed to save scan configuration %s: %w", req.ConfigurationName, err)
	}
	return cfg, nil
}

func (s *service) FindAll(ctx context.Context) ([]model.ScanConfig, error) {
	items, err := storage.QueryAll(ctx, s.table, storage.Query{PartitionKey: PartitionScanConfigs})
	if err != nil {
		return nil, fmt.Errorf("failed to list scan configurations: %w", err)
	}
	return storage.DecodeAll[model.ScanConfig](items)
}
