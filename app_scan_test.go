package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadScanRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	if err := os.WriteFile(path, []byte(`{"Regions":["us-east-1"],"ServiceNames":["s3"]}`), 0o600); err != nil {
		t.Fatalf("write request: %v", err)
	}

	req, err := readScanRequest(nil, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Nil(t, req.Regions)

	req, err = readScanRequest([]string{"-"}, strings.NewReader(`{"AccountIds":["111111111111"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"111111111111"}, req.AccountIDs)

	req, err = readScanRequest([]string{path}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"us-east-1"}, req.Regions)
	assert.Equal(t, []string{"s3"}, req.ServiceNames)

	_, err = readScanRequest([]string{"-"}, strings.NewReader("{"))
	assert.ErrorContains(t, err, "failed to decode scan request")
}

func TestRunScanCommandRejectsUnknownScans(t *testing.T) {
	app := newTestApp(t)

	err := runScanCommand(context.Background(), app, nil, nil, &bytes.Buffer{}, "table")
	assert.ErrorContains(t, err, "usage")

	err = runScanCommand(context.Background(), app, []string{"guardduty"}, nil, &bytes.Buffer{}, "table")
	if err == nil || !strings.Contains(err.Error(), "delegated-admins|policy-explorer|resource-based-policies|trusted-services") {
		t.Fatalf("expected the valid scans in the error, got %v", err)
	}
}
