package render

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/graph"
	"github.com/artpar/fa-topology/internal/core/invariant"
	"github.com/artpar/fa-topology/internal/core/output"
	"github.com/artpar/fa-topology/internal/core/topology"
)

// =============================================================================
// Helpers
// =============================================================================

type fixture struct {
	cfg        config.Configuration
	graph      *graph.Graph
	outputs    output.OutputSet
	violations []invariant.Violation
}

func newFixture(t *testing.T, raw config.Raw) fixture {
	t.Helper()
	cfg, err := config.Validate(raw)
	require.NoError(t, err)
	g := topology.Resolve(cfg)
	outs, err := output.Project(g)
	require.NoError(t, err)
	return fixture{cfg: cfg, graph: g, outputs: outs, violations: invariant.Check(g)}
}

func secureFixture(t *testing.T) fixture {
	return newFixture(t, config.Raw{Region: "us-east-1", DomainName: "agents.example.com", DNSZoneID: "Z1234567890ABC"})
}

func (f fixture) document(t *testing.T) Document {
	t.Helper()
	doc, err := NewDocument(f.cfg, f.graph, f.outputs, f.violations)
	require.NoError(t, err)
	return doc
}

// =============================================================================
// Formats
// =============================================================================

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"YAML", FormatYAML, false},
		{"yml", FormatYAML, false},
		{" hcl ", FormatHCL, false},
		{"terraform", FormatHCL, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Document
// =============================================================================

func TestNewDocument(t *testing.T) {
	f := secureFixture(t)
	doc := f.document(t)

	assert.Equal(t, f.graph.Fingerprint(), doc.Fingerprint)
	assert.Equal(t, "us-east-1", doc.Region)
	assert.Equal(t, "secure-with-redirect", doc.Routing)
	assert.Len(t, doc.Resources, f.graph.Len())
	assert.Len(t, doc.ApplyOrder, f.graph.Len())
	assert.Len(t, doc.Outputs, 5)
	assert.NotNil(t, doc.Violations)
	assert.Empty(t, doc.Violations)
}

func TestNewDocument_RefsAreInterpolated(t *testing.T) {
	doc := secureFixture(t).document(t)

	var record Resource
	for _, r := range doc.Resources {
		if r.Identity == topology.IDDNSRecord {
			record = r
		}
	}
	require.Equal(t, topology.IDDNSRecord, record.Identity)
	assert.True(t, record.Conditional)

	alias := record.Attributes["alias"].([]any)[0].(map[string]any)
	assert.Equal(t, "${aws_lb.agents.dns_name}", alias["name"])
}

func TestJSON(t *testing.T) {
	data, err := JSON(secureFixture(t).document(t))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "secure-with-redirect", decoded["routing"])

	outputs := decoded["outputs"].(map[string]any)
	assert.Equal(t, map[string]any{"literal": "https://agents.example.com"}, outputs["agents_url"])
	assert.Equal(t, map[string]any{"ref": "aws_lb.agents.dns_name"}, outputs["alb_dns_name"])
}

func TestYAML(t *testing.T) {
	data, err := YAML(newFixture(t, config.Raw{Region: "eu-west-1"}).document(t))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "direct", decoded["routing"])
	assert.Equal(t, "eu-west-1", decoded["region"])

	outputs := decoded["outputs"].(map[string]any)
	assert.Equal(t, map[string]any{"ref": "aws_lb.agents.dns_name"}, outputs["agents_url"])
}

func TestYAML_IncludesViolations(t *testing.T) {
	f := newFixture(t, config.Raw{Region: "us-east-1", DesiredCount: config.IntPtr(0)})
	data, err := YAML(f.document(t))
	require.NoError(t, err)

	assert.Contains(t, string(data), "rule: scale-to-zero")
	assert.Contains(t, string(data), "severity: warning")
}

// =============================================================================
// HCL
// =============================================================================

func TestHCL_IsValidSyntax(t *testing.T) {
	for _, f := range []fixture{newFixture(t, config.Raw{Region: "us-east-1"}), secureFixture(t)} {
		data, err := HCL(f.cfg, f.graph, f.outputs)
		require.NoError(t, err)

		file, diags := hclsyntax.ParseConfig(data, "main.tf", hcl.InitialPos)
		require.False(t, diags.HasErrors(), diags.Error())

		body := file.Body.(*hclsyntax.Body)
		var resources, outputs int
		for _, block := range body.Blocks {
			switch block.Type {
			case "resource":
				resources++
			case "output":
				outputs++
			}
		}
		assert.Equal(t, f.graph.Len(), resources)
		assert.Equal(t, 5, outputs)
	}
}

func TestHCL_Content(t *testing.T) {
	f := secureFixture(t)
	data, err := HCL(f.cfg, f.graph, f.outputs)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `provider "aws" {`)
	assert.Contains(t, text, `resource "aws_lb_listener" "https" {`)
	assert.Regexp(t, regexp.MustCompile(`(?m)^\s*count\s+=\s+1$`), text)
	assert.Contains(t, text, "jsonencode(")
	assert.Regexp(t, regexp.MustCompile(`certificate_arn\s+=\s+aws_acm_certificate_validation\.agents\[0\]\.certificate_arn`), text)
	assert.Regexp(t, regexp.MustCompile(`depends_on\s+=\s+\[aws_lb_listener\.http,\s*aws_lb_listener\.https\[0\]\]`), text)
	assert.Regexp(t, regexp.MustCompile(`value\s+=\s+"https://agents\.example\.com"`), text)
	assert.Contains(t, text, "default_action {")
	assert.Contains(t, text, "redirect {")
}

func TestHCL_CertificateValidationReadsSetThroughList(t *testing.T) {
	f := secureFixture(t)
	data, err := HCL(f.cfg, f.graph, f.outputs)
	require.NoError(t, err)
	text := string(data)

	assert.NotContains(t, text, "domain_validation_options[0]")
	for _, attr := range []string{"name", "type"} {
		assert.Regexp(t, regexp.MustCompile(
			attr+`\s+=\s+tolist\(aws_acm_certificate\.agents\[0\]\.domain_validation_options\)\[0\]\.resource_record_`+attr),
			text)
	}
	assert.Regexp(t, regexp.MustCompile(
		`records\s+=\s+\[tolist\(aws_acm_certificate\.agents\[0\]\.domain_validation_options\)\[0\]\.resource_record_value\]`),
		text)

	file, diags := hclsyntax.ParseConfig(data, "main.tf", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	for _, block := range file.Body.(*hclsyntax.Body).Blocks {
		if block.Type != "resource" || block.Labels[1] != "cert_validation" {
			continue
		}
		var expr hclsyntax.Expression = block.Body.Attributes["name"].Expr
		for {
			rel, ok := expr.(*hclsyntax.RelativeTraversalExpr)
			if !ok {
				break
			}
			expr = rel.Source
		}
		fn, ok := expr.(*hclsyntax.FunctionCallExpr)
		require.True(t, ok, "expected a tolist call, got %T", expr)
		assert.Equal(t, "tolist", fn.Name)
	}
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	doc := secureFixture(t).document(t)
	data, err := JSON(doc)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc.Outputs, decoded.Outputs)
	assert.Equal(t, doc.Fingerprint, decoded.Fingerprint)
	assert.Equal(t, doc.ApplyOrder, decoded.ApplyOrder)
}

func TestHCL_DirectHasNoCount(t *testing.T) {
	f := newFixture(t, config.Raw{Region: "us-east-1"})
	data, err := HCL(f.cfg, f.graph, f.outputs)
	require.NoError(t, err)

	assert.NotRegexp(t, regexp.MustCompile(`(?m)^\s*count\s+=`), string(data))
	assert.Equal(t, 1, strings.Count(string(data), `resource "aws_lb_listener"`))
	assert.Regexp(t, regexp.MustCompile(`value\s+=\s+aws_lb\.agents\.dns_name`), string(data))
}

func TestHCL_UnsupportedValue(t *testing.T) {
	b := graph.NewBuilder()
	b.Add(graph.Descriptor{
		Kind:       graph.KindLogGroup,
		Identity:   "aws_cloudwatch_log_group.bad",
		Attributes: map[string]any{"retention": 1.5},
	})

	_, err := HCL(config.Configuration{Region: "us-east-1"}, b.Build(), output.OutputSet{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aws_cloudwatch_log_group.bad")
}
