package flag

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/thirukguru/aws-account-assessment/model"
)

// NewService creates a new flag service.
func NewService() Service {
	return &service{}
}

// GetParsedFlags parses and returns the command-line flags. Positional arguments
// (the subcommand and its operands) are returned in Args.
func (s *service) GetParsedFlags() (model.Flags, error) {
	profile := pflag.StringP("profile", "p", "", "AWS profile to use")
	region := pflag.StringP("region", "r", "", "AWS region to use")
	store := pflag.String("store", "", "Component table backend (dynamodb or sqlite)")
	sqlitePath := pflag.String("db-path", "", "SQLite database path (default ~/.aws-account-assessment/component.db)")
	table := pflag.String("table", "", "DynamoDB component table name")
	httpAddr := pflag.String("addr", "", "Listen address of the API server")
	maxParallel := pflag.Int("max-parallel", 0, "Maximum number of concurrent scan branches")
	output := pflag.StringP("output", "o", "table", "Output format (table or json)")
	logLevel := pflag.String("log-level", "", "Log level (debug, info, warn, error)")

	pflag.Parse()

	flags := model.Flags{
		Profile:      strings.TrimSpace(*profile),
		Region:       strings.TrimSpace(*region),
		StoreBackend: strings.ToLower(strings.TrimSpace(*store)),
		SQLitePath:   strings.TrimSpace(*sqlitePath),
		Table:        strings.TrimSpace(*table),
		HTTPAddr:     strings.TrimSpace(*httpAddr),
		MaxParallel:  *maxParallel,
		Output:       strings.ToLower(strings.TrimSpace(*output)),
		LogLevel:     strings.TrimSpace(*logLevel),
		Args:         pflag.Args(),
	}

	return flags, nil
}
