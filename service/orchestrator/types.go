package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/thirukguru/aws-account-assessment/service/finisher"
	"github.com/thirukguru/aws-account-assessment/service/scantask"
	"github.com/thirukguru/aws-account-assessment/service/validator"
)

// Summary counts the work of one engine run.
type Summary struct {
	Accounts       int
	ValidAccounts  int
	Branches       int
	FailedBranches int
	Findings       int
}

// Option customizes the engine.
type Option func(*Engine)

// WithMaxParallel bounds the number of concurrent validations and branches.
func WithMaxParallel(n int) Option {
	return func(e *Engine) { e.maxParallel = n }
}

// WithMaxAttempts sets how often a branch is tried when it fails with a transient error.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) { e.maxAttempts = n }
}

// WithBackoff sets the delay before the first retry. It doubles on every further retry.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) { e.backoff = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine drives resource based policy and policy explorer scans in process:
// validate accounts, fan out one branch per account, service and region, then finish the job.
type Engine struct {
	validator   validator.Service
	tasks       scantask.Service
	finisher    finisher.Service
	maxParallel int
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger

	running sync.WaitGroup
}
