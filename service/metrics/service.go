// Package metrics sends anonymous scan and search metrics to Amazon CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/thirukguru/aws-account-assessment/config"
	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// NewService creates a metrics service. Nothing is sent unless cfg enables it.
func NewService(cfg config.MetricsConfig, client CloudWatchClientAPI, opts ...Option) Service {
	s := &service{
		client:    client,
		enabled:   cfg.Enabled() && client != nil,
		namespace: cfg.Namespace,
		version:   cfg.SolutionVersion,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With("component", "metrics")
	return s
}

// NewCloudWatchClient creates the CloudWatch client for cfg.
func NewCloudWatchClient(cfg aws.Config) CloudWatchClientAPI {
	return cloudwatch.NewFromConfig(cfg)
}

// Summarize counts findings and the distinct services, accounts and regions they cover.
func Summarize(findings []map[string]any) ScanSummary {
	services := map[string]struct{}{}
	accounts := map[string]struct{}{}
	regions := map[string]struct{}{}
	for _, f := range findings {
		addString(services, f["ServiceName"])
		addString(services, f["ServicePrincipal"])
		addString(accounts, f["AccountId"])
		addString(regions, f["Region"])
	}
	return ScanSummary{
		FindingsCount: len(findings),
		ServicesCount: len(services),
		AccountsCount: len(accounts),
		RegionsCount:  len(regions),
	}
}

func addString(set map[string]struct{}, v any) {
	if s, ok := v.(string); ok && s != "" {
		set[s] = struct{}{}
	}
}

func (s *service) SendScanMetrics(ctx context.Context, assessmentType model.AssessmentType, findings []map[string]any) {
	if !s.enabled {
		return
	}
	summary := Summarize(findings)
	dims := s.dimensions(cwtypes.Dimension{Name: aws.String("AssessmentType"), Value: aws.String(string(assessmentType))})
	s.put(ctx, []cwtypes.MetricDatum{
		s.datum("FindingsCount", float64(summary.FindingsCount), dims),
		s.datum("ServicesCount", float64(summary.ServicesCount), dims),
		s.datum("AccountsCount", float64(summary.AccountsCount), dims),
		s.datum("RegionsCount", float64(summary.RegionsCount), dims),
	})
}

func (s *service) SendSearchMetrics(ctx context.Context, policyType model.PolicyType, region string, filters []string, results int) {
	if !s.enabled {
		return
	}
	sorted := append([]string(nil), filters...)
	sort.Strings(sorted)
	filterValue := strings.Join(sorted, ",")
	if filterValue == "" {
		filterValue = "none"
	}
	dims := s.dimensions(
		cwtypes.Dimension{Name: aws.String("PolicyType"), Value: aws.String(string(policyType))},
		cwtypes.Dimension{Name: aws.String("Region"), Value: aws.String(region)},
		cwtypes.Dimension{Name: aws.String("Filters"), Value: aws.String(filterValue)},
	)
	s.put(ctx, []cwtypes.MetricDatum{
		s.datum("PolicySearches", 1, dims),
		s.datum("SearchResults", float64(results), dims),
	})
}

func (s *service) dimensions(extra ...cwtypes.Dimension) []cwtypes.Dimension {
	return append([]cwtypes.Dimension{{Name: aws.String("SolutionVersion"), Value: aws.String(s.version)}}, extra...)
}

func (s *service) datum(name string, value float64, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(s.now()),
		Dimensions: dims,
	}
}

func (s *service) put(ctx context.Context, data []cwtypes.MetricDatum) {
	_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(s.namespace),
		MetricData: data,
	})
	if err != nil {
		s.logger.Warn("failed to send metrics", "error", fmt.Errorf("put metric data: %w", err))
	}
}
