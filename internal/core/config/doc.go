// Package config provides the validated deployment configuration model.
//
// Raw input (from tfvars files, environment, flags or HTTP bodies) is turned
// into an immutable Configuration by Validate. All functions are pure (no
// I/O, no side effects) and comply with ADR-002 "Values as Boundaries".
//
// The single branch of the topology, whether a custom domain is configured,
// is decided here and carried as a RoutingMode variant:
//
//	cfg, err := config.Validate(config.Raw{Region: "us-east-1", DomainName: "agents.example.com", DNSZoneID: "Z1234567890ABC"})
//	switch mode := cfg.Routing.(type) {
//	case config.Direct:
//	case config.SecureWithRedirect:
//	    _ = mode.Domain
//	}
package config
