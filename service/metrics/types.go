package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/thirukguru/aws-account-assessment/model"
)

// CloudWatchClientAPI is the interface for the Amazon CloudWatch client methods used by the service.
type CloudWatchClientAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// ScanSummary counts what a finished scan found.
type ScanSummary struct {
	FindingsCount int
	ServicesCount int
	AccountsCount int
	RegionsCount  int
}

// Service emits anonymous usage metrics. Failures are logged, never returned.
type Service interface {
	SendScanMetrics(ctx context.Context, assessmentType model.AssessmentType, findings []map[string]any)
	SendSearchMetrics(ctx context.Context, policyType model.PolicyType, region string, filters []string, results int)
}

// Option customizes the metrics service.
type Option func(*service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

type service struct {
	client    CloudWatchClientAPI
	enabled   bool
	namespace string
	version   string
	now       func() time.Time
	logger    *slog.Logger
}
