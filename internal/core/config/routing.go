package config

// =============================================================================
// Routing Mode
// =============================================================================

// RoutingMode decides how public traffic reaches the service. It is a closed
// set: Direct or SecureWithRedirect.
type RoutingMode interface {
	isRoutingMode()
	// Name is a short label used in logs and stored plans.
	Name() string
}

// Direct serves plain HTTP from the load balancer with no custom domain.
type Direct struct{}

func (Direct) isRoutingMode() {}

// Name implements RoutingMode.
func (Direct) Name() string { return "direct" }

// SecureWithRedirect serves HTTPS on a custom domain and redirects HTTP to it.
type SecureWithRedirect struct {
	Domain string
	ZoneID string
}

func (SecureWithRedirect) isRoutingMode() {}

// Name implements RoutingMode.
func (SecureWithRedirect) Name() string { return "secure-with-redirect" }
