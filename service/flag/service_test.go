package flag

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func resetFlagState(t *testing.T, args []string) func() {
	t.Helper()
	oldCommandLine := pflag.CommandLine
	oldArgs := os.Args
	pflag.CommandLine = pflag.NewFlagSet("test", pflag.ContinueOnError)
	os.Args = append([]string{"aws-account-assessment"}, args...)
	return func() {
		pflag.CommandLine = oldCommandLine
		os.Args = oldArgs
	}
}

func TestGetParsedFlagsAllOptions(t *testing.T) {
	cleanup := resetFlagState(t, []string{
		"scan",
		"--profile", "audit",
		"--region", "eu-west-1",
		"--store", " DynamoDB ",
		"--db-path", "/tmp/component.db",
		"--table", "Component",
		"--addr", ":9090",
		"--max-parallel", "4",
		"--output", "JSON",
		"--log-level", "debug",
		"resource-based-policies",
	})
	defer cleanup()

	flags, err := NewService().GetParsedFlags()
	if err != nil {
		t.Fatalf("GetParsedFlags failed: %v", err)
	}

	assert.Equal(t, "audit", flags.Profile)
	assert.Equal(t, "eu-west-1", flags.Region)
	assert.Equal(t, "dynamodb", flags.StoreBackend)
	assert.Equal(t, "/tmp/component.db", flags.SQLitePath)
	assert.Equal(t, "Component", flags.Table)
	assert.Equal(t, ":9090", flags.HTTPAddr)
	assert.Equal(t, 4, flags.MaxParallel)
	assert.Equal(t, "json", flags.Output)
	assert.Equal(t, "debug", flags.LogLevel)
	assert.Equal(t, []string{"scan", "resource-based-policies"}, flags.Args)
}

func TestGetParsedFlagsDefaults(t *testing.T) {
	cleanup := resetFlagState(t, []string{"serve"})
	defer cleanup()

	flags, err := NewService().GetParsedFlags()
	if err != nil {
		t.Fatalf("GetParsedFlags failed: %v", err)
	}

	if flags.Output != "table" {
		t.Fatalf("expected default output table, got %q", flags.Output)
	}
	if flags.MaxParallel != 0 || flags.StoreBackend != "" || flags.HTTPAddr != "" {
		t.Fatalf("expected unset overrides, got %+v", flags)
	}
	assert.Equal(t, []string{"serve"}, flags.Args)
}
