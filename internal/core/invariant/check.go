package invariant

import (
	"encoding/json"
	"fmt"

	"github.com/artpar/fa-topology/internal/core/graph"
	"github.com/artpar/fa-topology/internal/core/topology"
)

// =============================================================================
// Check
// =============================================================================

// rule inspects a graph and returns the violations it finds.
type rule func(g *graph.Graph) []Violation

// rules run in this order; violations are reported in the same order.
var rules = []rule{
	checkUniqueIdentities,
	checkReferences,
	checkRouting,
	checkServiceIngress,
	checkTables,
	checkHealthCheck,
	checkIdleTimeout,
	checkTrustPrincipals,
	checkScaleToZero,
}

// Check validates g against every rule and returns all violations found.
// An empty result means the graph may be provisioned.
func Check(g *graph.Graph) []Violation {
	if g == nil {
		return []Violation{errorf("", RuleReferencesResolve, "graph is nil")}
	}

	var violations []Violation
	for _, r := range rules {
		violations = append(violations, r(g)...)
	}
	return violations
}

func errorf(identity, rule, format string, args ...any) Violation {
	return Violation{
		Identity: identity,
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
		Severity: SeverityError,
	}
}

func missing(identity, rule string) []Violation {
	return []Violation{errorf(identity, rule, "descriptor is missing")}
}

// =============================================================================
// Structural Rules
// =============================================================================

func checkUniqueIdentities(g *graph.Graph) []Violation {
	var out []Violation
	for _, id := range g.Duplicates() {
		out = append(out, errorf(id, RuleUniqueIdentity, "identity is declared more than once"))
	}
	return out
}

func checkReferences(g *graph.Graph) []Violation {
	var out []Violation
	for _, e := range g.DanglingReferences() {
		out = append(out, errorf(e.From, RuleReferencesResolve, "references %s, which is not in the graph", e.To))
	}
	return out
}

// =============================================================================
// Routing Rules
// =============================================================================

// checkRouting enforces the listener action and that the TLS resources
// exist, and are wired correctly, exactly when HTTP redirects.
func checkRouting(g *graph.Graph) []Violation {
	listener, ok := g.Get(topology.IDHTTPListener)
	if !ok {
		return missing(topology.IDHTTPListener, RuleHTTPListenerAction)
	}

	action, _ := listener.Block("default_action")
	actionType, _ := action["type"].(string)

	switch actionType {
	case topology.ActionRedirect:
		return checkSecureRouting(g)
	case topology.ActionForward:
		return checkDirectRouting(g)
	default:
		return []Violation{errorf(listener.Identity, RuleHTTPListenerAction,
			"default action %q is neither %s nor %s", actionType, topology.ActionForward, topology.ActionRedirect)}
	}
}

func checkSecureRouting(g *graph.Graph) []Violation {
	var out []Violation
	for _, id := range []string{topology.IDCertificate, topology.IDHTTPSListener, topology.IDDNSRecord} {
		if !g.Has(id) {
			out = append(out, errorf(id, RuleRoutingExclusive,
				"HTTP listener redirects but %s is missing", id))
		}
	}

	if https, ok := g.Get(topology.IDHTTPSListener); ok {
		if protocol, _ := https.String("protocol"); protocol != "HTTPS" {
			out = append(out, errorf(https.Identity, RuleRoutingExclusive,
				"HTTPS listener protocol is %q", protocol))
		}
		cert, ok := https.Ref("certificate_arn")
		switch {
		case !ok:
			out = append(out, errorf(https.Identity, RuleRoutingExclusive,
				"HTTPS listener has no certificate"))
		case cert.Identity != topology.IDCertificate && cert.Identity != topology.IDCertificateValidation:
			out = append(out, errorf(https.Identity, RuleRoutingExclusive,
				"HTTPS listener certificate comes from %s, expected %s", cert.Identity, topology.IDCertificate))
		}
	}

	if record, ok := g.Get(topology.IDDNSRecord); ok {
		alias, _ := record.Block("alias")
		target, isRef := alias["name"].(graph.Ref)
		zone, zoneIsRef := alias["zone_id"].(graph.Ref)
		if !isRef || target.Identity != topology.IDLoadBalancer ||
			!zoneIsRef || zone.Identity != topology.IDLoadBalancer {
			out = append(out, errorf(record.Identity, RuleRoutingExclusive,
				"DNS record must alias %s", topology.IDLoadBalancer))
		}
	}
	return out
}

// checkDirectRouting reports every conditional resource, certificate, DNS
// record and HTTPS listener in a graph whose HTTP listener forwards.
func checkDirectRouting(g *graph.Graph) []Violation {
	var out []Violation
	for _, d := range g.Descriptors() {
		protocol, _ := d.String("protocol")
		switch {
		case d.Conditional,
			d.Kind == graph.KindCertificate,
			d.Kind == graph.KindDNSRecord,
			d.Kind == graph.KindListener && protocol == "HTTPS":
			out = append(out, errorf(d.Identity, RuleRoutingExclusive,
				"HTTP listener forwards but %s exists", d.Kind))
		}
	}
	return out
}

// =============================================================================
// Network Rules
// =============================================================================

func checkServiceIngress(g *graph.Graph) []Violation {
	rule, ok := g.Get(topology.IDServiceIngress)
	if !ok {
		return missing(topology.IDServiceIngress, RuleServiceIngress)
	}

	var out []Violation
	for _, key := range []string{"cidr_ipv4", "cidr_ipv6", "prefix_list_id"} {
		if rule.Has(key) {
			out = append(out, errorf(rule.Identity, RuleServiceIngress,
				"service ingress must not have a %s source", key))
		}
	}

	source, ok := rule.Ref("referenced_security_group_id")
	if !ok || source.Identity != topology.IDALBSecurityGroup {
		out = append(out, errorf(rule.Identity, RuleServiceIngress,
			"service ingress must be sourced from %s", topology.IDALBSecurityGroup))
	}
	return out
}

// =============================================================================
// Storage Rules
// =============================================================================

func checkTables(g *graph.Graph) []Violation {
	var out []Violation
	var first, firstID string

	for _, id := range topology.TableIdentities() {
		table, ok := g.Get(id)
		if !ok {
			out = append(out, missing(id, RuleTableBillingMode)...)
			continue
		}
		mode, _ := table.String("billing_mode")
		switch {
		case mode == "":
			out = append(out, errorf(id, RuleTableBillingMode, "billing mode is not set"))
		case firstID == "":
			first, firstID = mode, id
		case mode != first:
			out = append(out, errorf(id, RuleTableBillingMode,
				"billing mode %s differs from %s on %s", mode, first, firstID))
		}
	}
	return out
}

// =============================================================================
// Load Balancing Rules
// =============================================================================

func checkHealthCheck(g *graph.Graph) []Violation {
	tg, ok := g.Get(topology.IDTargetGroup)
	if !ok {
		return missing(topology.IDTargetGroup, RuleHealthCheck)
	}
	hc, ok := tg.Block("health_check")
	if !ok {
		return []Violation{errorf(tg.Identity, RuleHealthCheck, "health check is not configured")}
	}

	var out []Violation
	expected := []struct {
		key  string
		want any
	}{
		{"path", topology.HealthCheckPath},
		{"matcher", topology.HealthCheckMatcher},
		{"interval", topology.HealthCheckIntervalSeconds},
	}
	for _, e := range expected {
		if got := hc[e.key]; got != e.want {
			out = append(out, errorf(tg.Identity, RuleHealthCheck,
				"health check %s is %v, expected %v", e.key, got, e.want))
		}
	}
	return out
}

func checkIdleTimeout(g *graph.Graph) []Violation {
	lb, ok := g.Get(topology.IDLoadBalancer)
	if !ok {
		return missing(topology.IDLoadBalancer, RuleIdleTimeout)
	}
	if timeout, _ := lb.Int("idle_timeout"); timeout != topology.IdleTimeoutSeconds {
		return []Violation{errorf(lb.Identity, RuleIdleTimeout,
			"idle timeout is %d, expected %d", timeout, topology.IdleTimeoutSeconds)}
	}
	return nil
}

// =============================================================================
// Access Rules
// =============================================================================

func checkTrustPrincipals(g *graph.Graph) []Violation {
	var out []Violation
	for _, role := range g.OfKind(graph.KindRole) {
		principals, err := servicePrincipals(role)
		if err != nil {
			out = append(out, errorf(role.Identity, RuleTrustPrincipal, "%v", err))
			continue
		}
		for _, p := range principals {
			if p != topology.TaskServicePrincipal {
				out = append(out, errorf(role.Identity, RuleTrustPrincipal,
					"role trusts %s, only %s is allowed", p, topology.TaskServicePrincipal))
			}
		}
	}
	return out
}

// servicePrincipals extracts every principal named in a role's trust policy.
// The policy may be stored structured or as a JSON string.
func servicePrincipals(role graph.Descriptor) ([]string, error) {
	doc, ok := role.Encoded("assume_role_policy")
	if !ok {
		raw, isString := role.String("assume_role_policy")
		if !isString {
			return nil, fmt.Errorf("assume role policy is missing")
		}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("assume role policy is not valid JSON: %w", err)
		}
	}

	policy, _ := doc.(map[string]any)
	statements, _ := policy["Statement"].([]any)
	if len(statements) == 0 {
		return nil, fmt.Errorf("assume role policy has no statements")
	}

	var out []string
	for _, s := range statements {
		stmt, _ := s.(map[string]any)
		principal, ok := stmt["Principal"].(map[string]any)
		if !ok || len(principal) != 1 {
			return nil, fmt.Errorf("assume role policy must name exactly one service principal")
		}
		switch svc := principal["Service"].(type) {
		case string:
			out = append(out, svc)
		case []any:
			for _, item := range svc {
				out = append(out, fmt.Sprint(item))
			}
		default:
			return nil, fmt.Errorf("assume role policy must name exactly one service principal")
		}
	}
	return out, nil
}

// =============================================================================
// Capacity Rules
// =============================================================================

func checkScaleToZero(g *graph.Graph) []Violation {
	svc, ok := g.Get(topology.IDService)
	if !ok {
		return nil
	}
	if count, ok := svc.Int("desired_count"); ok && count == 0 {
		return []Violation{{
			Identity: svc.Identity,
			Rule:     RuleScaleToZero,
			Message:  "desired count is 0; the service will run no tasks",
			Severity: SeverityWarning,
		}}
	}
	return nil
}
