package finisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/service/metrics"
)

// Service moves a job to its terminal status.
type Service interface {
	Finish(ctx context.Context, req model.FinishRequest) (model.FinishResponse, error)
}

// Option customizes the finisher.
type Option func(*service)

// WithMetrics sets the metrics sink for scan metrics.
func WithMetrics(m metrics.Service) Option {
	return func(s *service) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

type service struct {
	jobs     jobs.Service
	findings findings.Service
	metrics  metrics.Service
	now      func() time.Time
	logger   *slog.Logger
}
