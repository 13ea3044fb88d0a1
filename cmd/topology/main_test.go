package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/shell/network"
	"github.com/artpar/fa-topology/internal/shell/planner"
	"github.com/artpar/fa-topology/internal/shell/store"
	"github.com/artpar/fa-topology/internal/shell/tfvars"
)

// =============================================================================
// Test Helpers
// =============================================================================

// runCLI runs the command with a temporary plan history.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	clearEnv(t)
	t.Setenv("TOPOLOGY_DATABASE_DSN", filepath.Join(t.TempDir(), "plans.db"))
	t.Setenv("TOPOLOGY_LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// Commands
// =============================================================================

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, fmt.Sprintf("topology %s (built %s)\n", Version, BuildTime), out)
}

func TestPlan_DirectJSON(t *testing.T) {
	code, out, _ := runCLI(t, "plan", "--no-save", "--region", "us-east-1")
	require.Equal(t, ExitSuccess, code)

	var doc struct {
		Region  string `json:"region"`
		Routing string `json:"routing"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "us-east-1", doc.Region)
	assert.Equal(t, "direct", doc.Routing)
}

func TestPlan_RecordsHistory(t *testing.T) {
	clearEnv(t)
	dsn := filepath.Join(t.TempDir(), "nested", "plans.db")
	t.Setenv("TOPOLOGY_DATABASE_DSN", dsn)
	t.Setenv("TOPOLOGY_LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	code := run([]string{"plan", "--region", "us-east-1", "--format", "yaml"}, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code, stderr.String())
	assert.Contains(t, stdout.String(), "routing: direct")
	assert.Contains(t, stderr.String(), "recorded plan")
	assert.Contains(t, stderr.String(), "changed: true")

	stdout.Reset()
	stderr.Reset()
	code = run([]string{"plan", "--region", "us-east-1"}, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stderr.String(), "changed: false")

	stdout.Reset()
	code = run([]string{"history"}, &stdout, &stderr)
	require.Equal(t, ExitSuccess, code)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "us-east-1")
	assert.Contains(t, lines[1], "direct")
}

func TestPlan_ConfigErrorExitCode(t *testing.T) {
	code, out, errOut := runCLI(t, "plan", "--no-save", "--region", "us-east-1", "--domain", "agents.example.com")

	assert.Equal(t, ExitConfigError, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "dns_zone_id")
}

func TestPlan_UnknownFormat(t *testing.T) {
	code, _, _ := runCLI(t, "plan", "--no-save", "--region", "us-east-1", "--format", "xml")
	assert.Equal(t, ExitConfigError, code)
}

func TestPlan_ScaleToZeroWarns(t *testing.T) {
	code, _, errOut := runCLI(t, "plan", "--no-save", "--region", "us-east-1", "--desired-count", "0")

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, errOut, "warning: scale-to-zero")
}

func TestRender_HCLFromVarFile(t *testing.T) {
	vars := filepath.Join(t.TempDir(), "prod.tfvars")
	require.NoError(t, os.WriteFile(vars, []byte(`
aws_region      = "eu-west-1"
domain_name     = "agents.example.com"
route53_zone_id = "Z123"
`), 0644))

	code, out, _ := runCLI(t, "render", "--var-file", vars)
	require.Equal(t, ExitSuccess, code)

	assert.Contains(t, out, `region = "eu-west-1"`)
	assert.Contains(t, out, `resource "aws_lb" "agents"`)
	assert.Contains(t, out, `resource "aws_acm_certificate" "agents"`)
	assert.Contains(t, out, `output "agents_url"`)
}

func TestRender_FlagsOverrideVarFile(t *testing.T) {
	vars := filepath.Join(t.TempDir(), "dev.tfvars")
	require.NoError(t, os.WriteFile(vars, []byte(`aws_region = "eu-west-1"`), 0644))

	code, out, _ := runCLI(t, "render", "--var-file", vars, "--region", "us-west-2", "-f", "json")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, `"region": "us-west-2"`)
}

func TestRender_MissingVarFile(t *testing.T) {
	code, _, errOut := runCLI(t, "render", "--var-file", filepath.Join(t.TempDir(), "absent.tfvars"))

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, errOut, "absent.tfvars")
}

func TestRender_BadVarFile(t *testing.T) {
	vars := filepath.Join(t.TempDir(), "bad.tfvars")
	require.NoError(t, os.WriteFile(vars, []byte(`aws_region = `), 0644))

	code, _, _ := runCLI(t, "render", "--var-file", vars)
	assert.Equal(t, ExitConfigError, code)
}

func TestOutputs(t *testing.T) {
	code, out, _ := runCLI(t, "outputs", "--region", "us-east-1", "--domain", "agents.example.com", "--zone-id", "Z123")
	require.Equal(t, ExitSuccess, code)

	assert.Contains(t, out, "alb_dns_name = aws_lb.agents.dns_name\n")
	assert.Contains(t, out, `agents_url = "https://agents.example.com"`)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 5)
}

func TestOutputs_DirectURLIsLoadBalancer(t *testing.T) {
	code, out, _ := runCLI(t, "outputs", "--region", "us-east-1")
	require.Equal(t, ExitSuccess, code)

	assert.Contains(t, out, "agents_url = aws_lb.agents.dns_name\n")
}

// =============================================================================
// Exit Codes
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"server error", &ServerError{Op: "Start", Err: errors.New("bind"), ExitCode: ExitHTTPServerError}, ExitHTTPServerError},
		{"blocked", fmt.Errorf("%w: rule", planner.ErrBlocked), ExitBlocked},
		{"config", config.NewConfigError("region", "is required", config.ErrMissingRegion), ExitConfigError},
		{"variables", fmt.Errorf("%w: bad", tfvars.ErrDecode), ExitConfigError},
		{"discovery", fmt.Errorf("network discovery: %w", network.ErrNoDefaultVPC), ExitDiscoveryError},
		{"store", store.NewStoreError("GetPlan", "plan", "x", "not found", store.ErrNotFound), ExitDatabaseError},
		{"undiscovered network", fmt.Errorf("%w: %w", planner.ErrDiscovery, errors.New("dial tcp: timeout")), ExitDiscoveryError},
		{"write failure", fmt.Errorf("write plan: %w", io.ErrShortWrite), ExitRuntimeError},
		{"other", errors.New("boom"), ExitRuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
