// Package config holds the environment driven configuration of the assessment services.
//
// Values are loaded with github.com/caarlos0/env. A .env file in the working
// directory is applied first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// StoreBackend selects the component table implementation.
type StoreBackend string

const (
	StoreDynamoDB StoreBackend = "dynamodb"
	StoreSQLite   StoreBackend = "sqlite"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (b *StoreBackend) UnmarshalText(text []byte) error {
	v := StoreBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case StoreDynamoDB, StoreSQLite:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid StoreBackend: %q (valid options: dynamodb, sqlite)", v)
	}
}

// AWSConfig selects credentials and the cross-account role.
type AWSConfig struct {
	Profile string `env:"AWS_PROFILE"`
	Region  string `env:"AWS_REGION"`
	// SpokeRoleName is the role assumed in every member account.
	SpokeRoleName string `env:"SPOKE_ROLE_NAME" envDefault:"AccountAssessment-Spoke-ExecutionRole"`
	// OrgManagementRoleName is assumed in the management account for Organizations reads when set.
	OrgManagementRoleName string `env:"ORG_MANAGEMENT_ROLE_NAME"`
}

// StoreConfig configures the component table.
type StoreConfig struct {
	Backend           StoreBackend `env:"STORE_BACKEND"           envDefault:"sqlite"`
	Table             string       `env:"COMPONENT_TABLE"         envDefault:"AccountAssessment-Component"`
	SQLitePath        string       `env:"SQLITE_PATH"`
	TTLDays           int          `env:"TIME_TO_LIVE_IN_DAYS"    envDefault:"90"`
	PolicyItemTTLDays int          `env:"POLICY_ITEM_TTL_IN_DAYS" envDefault:"2"`
}

// OrchestrationConfig configures how asynchronous scans are driven.
type OrchestrationConfig struct {
	// Empty ARNs run the scan with the in-process engine.
	ResourcePolicyStateMachineARN string `env:"SCAN_RESOURCE_POLICY_STATE_MACHINE_ARN"`
	PolicyExplorerStateMachineARN string `env:"SCAN_POLICY_EXPLORER_STATE_MACHINE_ARN"`
	MaxParallelBranches           int    `env:"MAX_PARALLEL_BRANCHES" envDefault:"8"`
	BranchMaxAttempts             int    `env:"BRANCH_MAX_ATTEMPTS"   envDefault:"3"`
}

// MetricsConfig configures anonymous usage metrics.
type MetricsConfig struct {
	SendAnonymousData string `env:"SEND_ANONYMOUS_DATA" envDefault:"no"`
	Namespace         string `env:"METRICS_NAMESPACE"   envDefault:"AccountAssessment"`
	SolutionVersion   string `env:"SOLUTION_VERSION"    envDefault:"dev"`
}

// Enabled reports whether metrics should be sent.
func (m MetricsConfig) Enabled() bool {
	return strings.EqualFold(strings.TrimSpace(m.SendAnonymousData), "yes")
}

// Config is the full service configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	AWS           AWSConfig
	Store         StoreConfig
	Orchestration OrchestrationConfig
	Metrics       MetricsConfig
}

// Sanitize applies guardrails to values loaded from the environment.
func (c *Config) Sanitize() {
	if c.Store.TTLDays <= 0 {
		c.Store.TTLDays = 90
	}
	if c.Store.PolicyItemTTLDays <= 0 {
		c.Store.PolicyItemTTLDays = 2
	}
	if c.Orchestration.MaxParallelBranches <= 0 {
		c.Orchestration.MaxParallelBranches = 8
	}
	if c.Orchestration.BranchMaxAttempts <= 0 {
		c.Orchestration.BranchMaxAttempts = 1
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	c.AWS.SpokeRoleName = strings.TrimSpace(c.AWS.SpokeRoleName)
	c.AWS.OrgManagementRoleName = strings.TrimSpace(c.AWS.OrgManagementRoleName)
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse(env.Options{})
}

// Parse parses configuration with explicit options. Tests pass Environment.
func Parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}
