package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/thirukguru/aws-account-assessment/config"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/dispatch"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/finisher"
	"github.com/thirukguru/aws-account-assessment/service/jobs"
	"github.com/thirukguru/aws-account-assessment/service/metrics"
	"github.com/thirukguru/aws-account-assessment/service/orchestrator"
	awsorganizations "github.com/thirukguru/aws-account-assessment/service/organizations"
	"github.com/thirukguru/aws-account-assessment/service/resourcepolicy"
	"github.com/thirukguru/aws-account-assessment/service/scanconfig"
	"github.com/thirukguru/aws-account-assessment/service/scantask"
	"github.com/thirukguru/aws-account-assessment/service/stepfunctions"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/service/validator"
)

// application holds the repositories every command needs. AWS backed
// components are built on first use so that local commands run without credentials.
type application struct {
	cfg    config.Config
	logger *slog.Logger

	table    storage.Table
	jobs     jobs.Service
	findings findings.Service
	configs  scanconfig.Service
	metrics  metrics.Service
	finisher finisher.Service

	awsOnce sync.Once
	awsCfg  aws.Config
	awsErr  error

	scan *scanners
}

// scanners are the components that talk to the organization.
type scanners struct {
	org        awsorganizations.Service
	validator  validator.Service
	tasks      scantask.Service
	engine     *orchestrator.Engine
	strategies []dispatch.Strategy
	runner     *dispatch.AssessmentRunner
}

func newApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	a := &application{cfg: cfg, logger: logger}

	table, err := a.openTable(ctx)
	if err != nil {
		return nil, err
	}
	a.table = table
	a.jobs = jobs.NewService(table, cfg.Store.TTLDays, jobs.WithLogger(logger))
	a.findings = findings.NewService(table, cfg.Store.TTLDays, cfg.Store.PolicyItemTTLDays, findings.WithLogger(logger))
	a.configs = scanconfig.NewService(table, cfg.Store.TTLDays)

	var cloudWatch metrics.CloudWatchClientAPI
	if cfg.Metrics.Enabled() {
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			_ = table.Close()
			return nil, err
		}
		cloudWatch = metrics.NewCloudWatchClient(awsCfg)
	}
	a.metrics = metrics.NewService(cfg.Metrics, cloudWatch, metrics.WithLogger(logger))
	a.finisher = finisher.NewService(a.jobs, a.findings, finisher.WithMetrics(a.metrics), finisher.WithLogger(logger))
	return a, nil
}

func (a *application) openTable(ctx context.Context) (storage.Table, error) {
	switch a.cfg.Store.Backend {
	case config.StoreDynamoDB:
		awsCfg, err := a.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("using dynamodb store", "table", a.cfg.Store.Table)
		return storage.NewDynamoDB(awsCfg, a.cfg.Store.Table), nil
	default:
		db, err := storage.NewSQLite(a.cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.logger.Debug("using sqlite store", "path", db.Path())
		return db, nil
	}
}

func (a *application) awsConfig(ctx context.Context) (aws.Config, error) {
	a.awsOnce.Do(func() {
		a.awsCfg, a.awsErr = awsconfig.NewService().GetAWSCfg(ctx, a.cfg.AWS.Region, a.cfg.AWS.Profile)
		if a.awsErr != nil {
			a.awsErr = fmt.Errorf("failed to load AWS config: %w", a.awsErr)
		}
	})
	return a.awsCfg, a.awsErr
}

// loadScanners builds the organization facing components. With inProcess set every
// asynchronous scan runs on the local engine, even when state machines are configured.
func (a *application) loadScanners(ctx context.Context, inProcess bool) (*scanners, error) {
	if a.scan != nil {
		return a.scan, nil
	}
	base, err := a.awsConfig(ctx)
	if err != nil {
		return nil, err
	}

	orgCfg, err := awsorganizations.ManagementConfig(ctx, base, a.cfg.AWS.OrgManagementRoleName,
		organizations.NewFromConfig(base), sts.NewFromConfig(base))
	if err != nil {
		return nil, err
	}
	org := awsorganizations.NewService(orgCfg)
	sessions := awsconfig.NewSpokeSessions(base, a.cfg.AWS.SpokeRoleName)

	s := &scanners{org: org}
	s.validator = validator.NewService(sessions, a.jobs, validator.WithLogger(a.logger))
	s.tasks = scantask.NewService(sessions, resourcepolicy.NewRegistry(), a.jobs, a.findings,
		scantask.WithSCPSource(org), scantask.WithLogger(a.logger))
	s.engine = orchestrator.NewEngine(s.validator, s.tasks, a.finisher,
		orchestrator.WithMaxParallel(a.cfg.Orchestration.MaxParallelBranches),
		orchestrator.WithMaxAttempts(a.cfg.Orchestration.BranchMaxAttempts),
		orchestrator.WithLogger(a.logger))

	starter := func(stateMachineARN string) dispatch.Starter {
		if inProcess || stateMachineARN == "" {
			return s.engine
		}
		return stepfunctions.NewStarter(base, stateMachineARN, a.logger)
	}
	s.strategies = []dispatch.Strategy{
		dispatch.NewDelegatedAdminStrategy(org, a.findings, a.logger),
		dispatch.NewTrustedAccessStrategy(org, a.findings),
		dispatch.NewResourceBasedPolicyStrategy(org, a.configs, starter(a.cfg.Orchestration.ResourcePolicyStateMachineARN)),
		dispatch.NewPolicyExplorerStrategy(org, starter(a.cfg.Orchestration.PolicyExplorerStateMachineARN), s.tasks),
		dispatch.NewSingleServiceStrategy(s.tasks),
	}
	s.runner = dispatch.NewAssessmentRunner(a.jobs, a.finisher, dispatch.WithLogger(a.logger))

	a.scan = s
	return s, nil
}

// Close waits for in-process scans and closes the store.
func (a *application) Close() error {
	if a.scan != nil {
		a.scan.engine.Wait()
	}
	return a.table.Close()
}
