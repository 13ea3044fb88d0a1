package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Kind
// =============================================================================

// Kind is the type of infrastructure resource a descriptor represents.
type Kind string

const (
	KindLoadBalancer      Kind = "LoadBalancer"
	KindListener          Kind = "Listener"
	KindTargetGroup       Kind = "TargetGroup"
	KindCertificate       Kind = "Certificate"
	KindDNSRecord         Kind = "DnsRecord"
	KindCluster           Kind = "Cluster"
	KindTaskDefinition    Kind = "TaskDefinition"
	KindService           Kind = "Service"
	KindLogGroup          Kind = "LogGroup"
	KindImageRepository   Kind = "ImageRepository"
	KindSecurityGroup     Kind = "SecurityGroup"
	KindSecurityGroupRule Kind = "SecurityGroupRule"
	KindTable             Kind = "Table"
	KindRole              Kind = "Role"
	KindRolePolicy        Kind = "RolePolicy"
	KindSecret            Kind = "Secret"
)

// AllKinds returns every known descriptor kind.
func AllKinds() []Kind {
	return []Kind{
		KindLoadBalancer, KindListener, KindTargetGroup, KindCertificate,
		KindDNSRecord, KindCluster, KindTaskDefinition, KindService,
		KindLogGroup, KindImageRepository, KindSecurityGroup,
		KindSecurityGroupRule, KindTable, KindRole, KindRolePolicy, KindSecret,
	}
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// =============================================================================
// Ref
// =============================================================================

// Ref is an attribute value that points at an attribute of another
// descriptor, e.g. the ARN of the target group a listener forwards to.
// Its value is only known once the provisioning engine has created the
// referenced resource.
type Ref struct {
	Identity  string
	Attribute string

	// Element names a set-valued attribute of Identity. When set, Attribute
	// is read from the first element of that set.
	Element string
}

// ErrInvalidRef is returned when text does not parse as a reference.
var ErrInvalidRef = errors.New("invalid reference")

// RefTo creates a reference to an attribute of the descriptor with the given identity.
func RefTo(identity, attribute string) Ref {
	return Ref{Identity: identity, Attribute: attribute}
}

// RefToElement creates a reference to an attribute of the first element of
// a set-valued attribute. Sets cannot be indexed directly, so the expression
// converts the set to a list first.
func RefToElement(identity, set, attribute string) Ref {
	return Ref{Identity: identity, Element: set, Attribute: attribute}
}

// Target returns the expression the reference reads from before any
// element selection, e.g. "aws_acm_certificate.agents[0].domain_validation_options".
func (r Ref) Target() string {
	if r.Element != "" {
		return r.Identity + "." + r.Element
	}
	return r.Identity + "." + r.Attribute
}

// String returns the reference as a Terraform expression, e.g.
// "aws_lb.agents.dns_name" or
// "tolist(aws_acm_certificate.agents[0].domain_validation_options)[0].resource_record_name".
func (r Ref) String() string {
	if r.Element != "" {
		return "tolist(" + r.Target() + ")[0]." + r.Attribute
	}
	return r.Target()
}

// MarshalText renders the reference in its expression form so JSON and YAML
// encoders emit it as a plain string.
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses the expression form written by MarshalText.
func (r *Ref) UnmarshalText(text []byte) error {
	ref, err := ParseRef(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}

// ParseRef parses a reference expression. The identity is the resource type
// and name, with an optional count index; the rest is the attribute, which
// may itself contain dots and indexes.
func ParseRef(expr string) (Ref, error) {
	if inner, ok := strings.CutPrefix(expr, "tolist("); ok {
		target, attr, found := strings.Cut(inner, ")[0].")
		if !found || attr == "" {
			return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, expr)
		}
		set, err := parseTraversal(target)
		if err != nil {
			return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, expr)
		}
		return RefToElement(set.Identity, set.Attribute, attr), nil
	}

	ref, err := parseTraversal(expr)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, expr)
	}
	return ref, nil
}

func parseTraversal(expr string) (Ref, error) {
	typ, rest, ok := strings.Cut(expr, ".")
	if !ok {
		return Ref{}, ErrInvalidRef
	}
	name, attr, ok := strings.Cut(rest, ".")
	if !ok || attr == "" {
		return Ref{}, ErrInvalidRef
	}
	identity := typ + "." + name
	if _, err := ParseAddress(identity); err != nil {
		return Ref{}, err
	}
	return RefTo(identity, attr), nil
}

// =============================================================================
// Encoded
// =============================================================================

// Encoded wraps a structured value that the provider expects as a JSON
// string, such as an IAM policy or a list of container definitions. Keeping
// it structured lets references inside it be tracked.
type Encoded struct {
	Value any
}

// MarshalJSON encodes the wrapped value.
func (e Encoded) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Value)
}

// =============================================================================
// Descriptor
// =============================================================================

// Descriptor is a single resource in the graph.
type Descriptor struct {
	// Kind is the resource type.
	Kind Kind `json:"kind"`

	// Identity is the stable key of the descriptor within its graph.
	Identity string `json:"identity"`

	// Attributes are the resource arguments. Values are strings, ints, bools,
	// []string, Ref, []Ref, Encoded, map[string]any, []any or
	// []map[string]any (nested blocks).
	Attributes map[string]any `json:"attributes"`

	// Conditional marks descriptors whose existence depends on configuration.
	Conditional bool `json:"conditional"`

	// References lists, in order, the identities this descriptor depends on.
	References []string `json:"references"`
}

// Has reports whether the attribute is set.
func (d Descriptor) Has(key string) bool {
	_, ok := d.Attributes[key]
	return ok
}

// String returns a string attribute.
func (d Descriptor) String(key string) (string, bool) {
	s, ok := d.Attributes[key].(string)
	return s, ok
}

// Int returns an integer attribute.
func (d Descriptor) Int(key string) (int, bool) {
	i, ok := d.Attributes[key].(int)
	return i, ok
}

// Bool returns a boolean attribute.
func (d Descriptor) Bool(key string) (bool, bool) {
	b, ok := d.Attributes[key].(bool)
	return b, ok
}

// Ref returns a reference attribute.
func (d Descriptor) Ref(key string) (Ref, bool) {
	r, ok := d.Attributes[key].(Ref)
	return r, ok
}

// Encoded returns the structured value of an Encoded attribute.
func (d Descriptor) Encoded(key string) (any, bool) {
	e, ok := d.Attributes[key].(Encoded)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Block returns the first nested block stored under key.
func (d Descriptor) Block(key string) (map[string]any, bool) {
	blocks, ok := d.Attributes[key].([]map[string]any)
	if !ok || len(blocks) == 0 {
		return nil, false
	}
	return blocks[0], true
}

// Blocks returns all nested blocks stored under key.
func (d Descriptor) Blocks(key string) []map[string]any {
	blocks, _ := d.Attributes[key].([]map[string]any)
	return blocks
}

// DependsOn reports whether the descriptor references the given identity.
func (d Descriptor) DependsOn(identity string) bool {
	for _, ref := range d.References {
		if ref == identity {
			return true
		}
	}
	return false
}

// collectRefs walks attribute values and returns the identities of every
// Ref found, in sorted-key order.
func collectRefs(attrs map[string]any) []string {
	var out []string

	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case Ref:
			out = append(out, val.Identity)
		case []Ref:
			for _, r := range val {
				out = append(out, r.Identity)
			}
		case Encoded:
			walk(val.Value)
		case map[string]any:
			for _, k := range sortedKeys(val) {
				walk(val[k])
			}
		case []map[string]any:
			for _, m := range val {
				walk(m)
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}

	walk(attrs)
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Edge is a directed dependency between two descriptors.
type Edge struct {
	From string
	To   string
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}
