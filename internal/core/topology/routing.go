package topology

import (
	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/graph"
)

// =============================================================================
// Routing
// =============================================================================

// routing adds the HTTP listener and, for a secured domain, the HTTPS branch.
// The HTTP listener's action and the existence of the HTTPS branch are both
// decided by the same routing mode, so they cannot disagree.
func (r *resolver) routing() {
	switch mode := r.cfg.Routing.(type) {
	case config.SecureWithRedirect:
		r.httpListener(redirectAction())
		r.secureBranch(mode)
	default:
		r.httpListener(forwardAction())
	}
}

func (r *resolver) httpListener(action []map[string]any) {
	r.add(graph.KindListener, IDHTTPListener, map[string]any{
		"load_balancer_arn": graph.RefTo(IDLoadBalancer, "arn"),
		"port":              80,
		"protocol":          "HTTP",
		"default_action":    action,
		"tags":              tags(),
	})
}

// secureBranch adds the certificate, its DNS validation, the HTTPS listener,
// the alias record and the 443 ingress rule. Every descriptor it adds is
// conditional on the domain being configured.
func (r *resolver) secureBranch(mode config.SecureWithRedirect) {
	conditional := func(kind graph.Kind, identity string, attrs map[string]any) {
		r.b.Add(graph.Descriptor{
			Kind:        kind,
			Identity:    identity,
			Attributes:  attrs,
			Conditional: true,
		})
	}

	conditional(graph.KindSecurityGroupRule, IDALBHTTPSIngress, ingressFromAnywhere(443, "HTTPS"))

	conditional(graph.KindCertificate, IDCertificate, map[string]any{
		"domain_name":       mode.Domain,
		"validation_method": "DNS",
		"lifecycle": []map[string]any{{
			"create_before_destroy": true,
		}},
		"tags": tags(),
	})

	// Validation options are a set, only known once the certificate exists.
	option := func(attr string) graph.Ref {
		return graph.RefToElement(IDCertificate, "domain_validation_options", attr)
	}
	conditional(graph.KindDNSRecord, IDCertValidationRecord, map[string]any{
		"zone_id":         mode.ZoneID,
		"name":            option("resource_record_name"),
		"type":            option("resource_record_type"),
		"records":         []graph.Ref{option("resource_record_value")},
		"ttl":             60,
		"allow_overwrite": true,
	})

	conditional(graph.KindCertificate, IDCertificateValidation, map[string]any{
		"certificate_arn":         graph.RefTo(IDCertificate, "arn"),
		"validation_record_fqdns": []graph.Ref{graph.RefTo(IDCertValidationRecord, "fqdn")},
	})

	conditional(graph.KindListener, IDHTTPSListener, map[string]any{
		"load_balancer_arn": graph.RefTo(IDLoadBalancer, "arn"),
		"port":              443,
		"protocol":          "HTTPS",
		"ssl_policy":        TLSPolicy,
		"certificate_arn":   graph.RefTo(IDCertificateValidation, "certificate_arn"),
		"default_action":    forwardAction(),
		"tags":              tags(),
	})

	conditional(graph.KindDNSRecord, IDDNSRecord, map[string]any{
		"zone_id": mode.ZoneID,
		"name":    mode.Domain,
		"type":    "A",
		"alias": []map[string]any{{
			"name":                   graph.RefTo(IDLoadBalancer, "dns_name"),
			"zone_id":                graph.RefTo(IDLoadBalancer, "zone_id"),
			"evaluate_target_health": true,
		}},
	})
}

// listenerIdentities returns the listeners that forward to the target group's
// load balancer for the configured routing mode.
func (r *resolver) listenerIdentities() []string {
	if _, ok := r.cfg.Routing.(config.SecureWithRedirect); ok {
		return []string{IDHTTPListener, IDHTTPSListener}
	}
	return []string{IDHTTPListener}
}
