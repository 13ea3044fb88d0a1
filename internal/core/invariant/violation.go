package invariant

import (
	"fmt"

	"go.uber.org/multierr"
)

// =============================================================================
// Types
// =============================================================================

// Severity classifies a violation.
type Severity string

const (
	// SeverityError blocks provisioning.
	SeverityError Severity = "error"

	// SeverityWarning is reported but does not block provisioning.
	SeverityWarning Severity = "warning"
)

// Rule names.
const (
	RuleUniqueIdentity     = "unique-identity"
	RuleReferencesResolve  = "references-resolve"
	RuleHTTPListenerAction = "http-listener-action"
	RuleRoutingExclusive   = "routing-exclusive"
	RuleServiceIngress     = "service-ingress-source"
	RuleTableBillingMode   = "table-billing-mode"
	RuleHealthCheck        = "health-check"
	RuleIdleTimeout        = "idle-timeout"
	RuleTrustPrincipal     = "trust-principal"
	RuleScaleToZero        = "scale-to-zero"
)

// Violation is one broken rule.
type Violation struct {
	// Identity is the offending descriptor, or the descriptor that was
	// expected but missing.
	Identity string   `json:"identity" yaml:"identity"`
	Rule     string   `json:"rule" yaml:"rule"`
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// Error implements error so violations can be aggregated.
func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s: %s", v.Rule, v.Identity, v.Message)
}

// Blocking reports whether v prevents provisioning.
func (v Violation) Blocking() bool {
	return v.Severity == SeverityError
}

// =============================================================================
// Aggregation
// =============================================================================

// Blocking returns the violations that prevent provisioning.
func Blocking(violations []Violation) []Violation {
	var out []Violation
	for _, v := range violations {
		if v.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Warnings returns the violations that do not prevent provisioning.
func Warnings(violations []Violation) []Violation {
	var out []Violation
	for _, v := range violations {
		if !v.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Err combines the blocking violations into a single error, or returns nil
// when provisioning may proceed. Use multierr.Errors to split it again.
func Err(violations []Violation) error {
	var err error
	for _, v := range Blocking(violations) {
		err = multierr.Append(err, v)
	}
	return err
}
