// Package render serializes a resolved topology as a plan document (JSON or
// YAML) or as Terraform configuration (HCL).
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/graph"
	"github.com/artpar/fa-topology/internal/core/invariant"
	"github.com/artpar/fa-topology/internal/core/output"
)

// =============================================================================
// Formats
// =============================================================================

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatHCL:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "tf", "terraform":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("unknown format %q (expected json, yaml or hcl)", s)
	}
}

// =============================================================================
// Plan Document
// =============================================================================

// Document is the serializable form of one planning cycle.
type Document struct {
	Fingerprint string                  `json:"fingerprint" yaml:"fingerprint"`
	Region      string                  `json:"region" yaml:"region"`
	Routing     string                  `json:"routing" yaml:"routing"`
	Resources   []Resource              `json:"resources" yaml:"resources"`
	ApplyOrder  []string                `json:"apply_order" yaml:"apply_order"`
	Outputs     map[string]output.Value `json:"outputs" yaml:"outputs"`
	Violations  []invariant.Violation   `json:"violations" yaml:"violations"`
}

// Resource is one descriptor in a Document. References to other resources
// appear in attributes as "${identity.attribute}".
type Resource struct {
	Identity    string         `json:"identity" yaml:"identity"`
	Kind        graph.Kind     `json:"kind" yaml:"kind"`
	Conditional bool           `json:"conditional" yaml:"conditional"`
	References  []string       `json:"references" yaml:"references"`
	Attributes  map[string]any `json:"attributes" yaml:"attributes"`
}

// NewDocument assembles the document for a resolved graph.
func NewDocument(cfg config.Configuration, g *graph.Graph, outs output.OutputSet, violations []invariant.Violation) (Document, error) {
	order, err := g.ApplyOrder()
	if err != nil {
		return Document{}, fmt.Errorf("render: %w", err)
	}

	doc := Document{
		Fingerprint: g.Fingerprint(),
		Region:      cfg.Region,
		Routing:     cfg.Routing.Name(),
		Resources:   make([]Resource, 0, g.Len()),
		ApplyOrder:  order,
		Outputs:     outs.Map(),
		Violations:  violations,
	}
	if doc.Violations == nil {
		doc.Violations = []invariant.Violation{}
	}

	for _, d := range g.Descriptors() {
		doc.Resources = append(doc.Resources, Resource{
			Identity:    d.Identity,
			Kind:        d.Kind,
			Conditional: d.Conditional,
			References:  append([]string{}, d.References...),
			Attributes:  plain(d.Attributes).(map[string]any),
		})
	}
	return doc, nil
}

// plain converts attribute values into JSON/YAML friendly values.
func plain(v any) any {
	switch val := v.(type) {
	case graph.Ref:
		return interpolation(val)
	case []graph.Ref:
		out := make([]any, len(val))
		for i, r := range val {
			out[i] = interpolation(r)
		}
		return out
	case graph.Encoded:
		return plain(val.Value)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return val
	}
}

func interpolation(r graph.Ref) string {
	return "${" + r.String() + "}"
}

// =============================================================================
// Encoders
// =============================================================================

// JSON encodes the document as indented JSON.
func JSON(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return append(data, '\n'), nil
}

// YAML encodes the document as YAML.
func YAML(doc Document) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render yaml: %w", err)
	}
	return data, nil
}
