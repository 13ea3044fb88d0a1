package output

import (
	"errors"
	"fmt"

	"github.com/artpar/fa-topology/internal/core/graph"
	"github.com/artpar/fa-topology/internal/core/topology"
)

// =============================================================================
// Errors
// =============================================================================

// ErrMissingDescriptor is wrapped by ContractError when a descriptor the
// projection needs is not in the graph.
var ErrMissingDescriptor = errors.New("required descriptor missing from graph")

// ContractError reports a graph that does not satisfy the projector's
// contract. Graphs that passed the invariant checker never produce one.
type ContractError struct {
	Output   string
	Identity string
	Err      error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("output %s: %s: %v", e.Output, e.Identity, e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Types
// =============================================================================

// Output names.
const (
	NameALBDNSName       = "alb_dns_name"
	NameECRRepositoryURL = "ecr_repository_url"
	NameECSClusterName   = "ecs_cluster_name"
	NameECSServiceName   = "ecs_service_name"
	NameAgentsURL        = "agents_url"
)

// Names returns the output names in declaration order.
func Names() []string {
	return []string{NameALBDNSName, NameECRRepositoryURL, NameECSClusterName, NameECSServiceName, NameAgentsURL}
}

// Value is either a literal or a reference to an attribute that is only
// known after provisioning.
type Value struct {
	Literal string     `json:"literal,omitempty" yaml:"literal,omitempty"`
	Ref     *graph.Ref `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// LiteralValue creates a literal value.
func LiteralValue(s string) Value {
	return Value{Literal: s}
}

// RefValue creates a reference value.
func RefValue(r graph.Ref) Value {
	return Value{Ref: &r}
}

// IsRef reports whether the value is a reference.
func (v Value) IsRef() bool {
	return v.Ref != nil
}

// String returns the literal, or the reference in traversal form.
func (v Value) String() string {
	if v.Ref != nil {
		return v.Ref.String()
	}
	return v.Literal
}

// OutputSet holds the projected outputs.
type OutputSet struct {
	ALBDNSName       Value `json:"alb_dns_name" yaml:"alb_dns_name"`
	ECRRepositoryURL Value `json:"ecr_repository_url" yaml:"ecr_repository_url"`
	ECSClusterName   Value `json:"ecs_cluster_name" yaml:"ecs_cluster_name"`
	ECSServiceName   Value `json:"ecs_service_name" yaml:"ecs_service_name"`
	AgentsURL        Value `json:"agents_url" yaml:"agents_url"`
}

// Map returns the outputs keyed by name.
func (o OutputSet) Map() map[string]Value {
	return map[string]Value{
		NameALBDNSName:       o.ALBDNSName,
		NameECRRepositoryURL: o.ECRRepositoryURL,
		NameECSClusterName:   o.ECSClusterName,
		NameECSServiceName:   o.ECSServiceName,
		NameAgentsURL:        o.AgentsURL,
	}
}

// =============================================================================
// Projection
// =============================================================================

// Project derives the outputs from g. It only reads the graph.
func Project(g *graph.Graph) (OutputSet, error) {
	if g == nil {
		return OutputSet{}, &ContractError{Output: NameALBDNSName, Identity: topology.IDLoadBalancer, Err: ErrMissingDescriptor}
	}

	var out OutputSet

	if !g.Has(topology.IDLoadBalancer) {
		return OutputSet{}, missing(NameALBDNSName, topology.IDLoadBalancer)
	}
	out.ALBDNSName = RefValue(graph.RefTo(topology.IDLoadBalancer, "dns_name"))

	if !g.Has(topology.IDRepository) {
		return OutputSet{}, missing(NameECRRepositoryURL, topology.IDRepository)
	}
	out.ECRRepositoryURL = RefValue(graph.RefTo(topology.IDRepository, "repository_url"))

	cluster, err := name(g, NameECSClusterName, topology.IDCluster)
	if err != nil {
		return OutputSet{}, err
	}
	out.ECSClusterName = LiteralValue(cluster)

	service, err := name(g, NameECSServiceName, topology.IDService)
	if err != nil {
		return OutputSet{}, err
	}
	out.ECSServiceName = LiteralValue(service)

	// The alias record only exists when a custom domain is configured.
	if record, ok := g.Get(topology.IDDNSRecord); ok {
		domain, ok := record.String("name")
		if !ok || domain == "" {
			return OutputSet{}, &ContractError{
				Output:   NameAgentsURL,
				Identity: record.Identity,
				Err:      fmt.Errorf("%w: record has no name", ErrMissingDescriptor),
			}
		}
		out.AgentsURL = LiteralValue("https://" + domain)
	} else {
		out.AgentsURL = out.ALBDNSName
	}

	return out, nil
}

func missing(output, identity string) error {
	return &ContractError{Output: output, Identity: identity, Err: ErrMissingDescriptor}
}

func name(g *graph.Graph, output, identity string) (string, error) {
	d, ok := g.Get(identity)
	if !ok {
		return "", missing(output, identity)
	}
	n, ok := d.String("name")
	if !ok || n == "" {
		return "", &ContractError{Output: output, Identity: identity, Err: fmt.Errorf("%w: no name attribute", ErrMissingDescriptor)}
	}
	return n, nil
}
