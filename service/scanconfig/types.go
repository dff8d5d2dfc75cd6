package scanconfig

import (
	"context"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/storage"
)

// PartitionScanConfigs holds saved scan configurations.
const PartitionScanConfigs = "ScanConfigurations"

// Service stores named scan configurations.
type Service interface {
	Save(ctx context.Context, req model.ScanRequest) (model.ScanConfig, error)
	FindAll(ctx context.Context) ([]model.ScanConfig, error)
}

type service struct {
	table   storage.Table
	ttlDays int
	now     func() time.Time
}
