package config

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultCPUUnits     = 512
	DefaultMemoryMiB    = 1024
	DefaultDesiredCount = 1
)

// =============================================================================
// Types
// =============================================================================

// Raw is unvalidated configuration input. Nil sizing fields take defaults.
type Raw struct {
	Region       string   `json:"region" mapstructure:"region"`
	DomainName   string   `json:"domain_name" mapstructure:"domain_name"`
	DNSZoneID    string   `json:"dns_zone_id" mapstructure:"dns_zone_id"`
	CPUUnits     *int     `json:"cpu_units,omitempty" mapstructure:"cpu_units"`
	MemoryMiB    *int     `json:"memory_mib,omitempty" mapstructure:"memory_mib"`
	DesiredCount *int     `json:"desired_count,omitempty" mapstructure:"desired_count"`
	VPCID        string   `json:"vpc_id,omitempty" mapstructure:"vpc_id"`
	SubnetIDs    []string `json:"subnet_ids,omitempty" mapstructure:"subnet_ids"`
}

// Network optionally pins the VPC and subnets the service runs in. When
// empty the provisioning engine uses the region's default VPC.
type Network struct {
	VPCID     string   `json:"vpc_id,omitempty"`
	SubnetIDs []string `json:"subnet_ids,omitempty"`
}

// IsZero reports whether no network placement was given.
func (n Network) IsZero() bool {
	return n.VPCID == "" && len(n.SubnetIDs) == 0
}

// Configuration is validated input for topology resolution. Treat it as
// immutable; build a new one through Validate to change anything.
type Configuration struct {
	Region       string
	Routing      RoutingMode
	CPUUnits     int
	MemoryMiB    int
	DesiredCount int
	Network      Network
}

// DomainName returns the custom domain, or "" in Direct mode.
func (c Configuration) DomainName() string {
	if m, ok := c.Routing.(SecureWithRedirect); ok {
		return m.Domain
	}
	return ""
}

// ScaleToZero reports whether the service is configured with no running tasks.
// It is accepted, but callers should surface it for review.
func (c Configuration) ScaleToZero() bool {
	return c.DesiredCount == 0
}

// =============================================================================
// Validation
// =============================================================================

var hostnameRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// Validate checks raw input and returns a Configuration or a *ConfigError.
// Checks run in field order and the first failure is returned.
//
// Example:
//
//	cfg, err := Validate(Raw{Region: "us-east-1", DomainName: "agents.example.com"})
//	// errors.Is(err, ErrMissingZone) == true
func Validate(raw Raw) (Configuration, error) {
	region := strings.TrimSpace(raw.Region)
	if region == "" {
		return Configuration{}, NewConfigError("region", "region must not be empty", ErrMissingRegion)
	}

	routing, err := validateRouting(raw.DomainName, raw.DNSZoneID)
	if err != nil {
		return Configuration{}, err
	}

	cpu := intOrDefault(raw.CPUUnits, DefaultCPUUnits)
	memory := intOrDefault(raw.MemoryMiB, DefaultMemoryMiB)
	if !ValidSize(cpu, memory) {
		return Configuration{}, NewConfigError("cpu_units",
			fmt.Sprintf("%d CPU units with %d MiB memory is not a supported task size", cpu, memory),
			ErrInvalidSizing)
	}

	desired := intOrDefault(raw.DesiredCount, DefaultDesiredCount)
	if desired < 0 {
		return Configuration{}, NewConfigError("desired_count",
			fmt.Sprintf("desired count %d is negative", desired),
			ErrInvalidDesiredCount)
	}

	return Configuration{
		Region:       region,
		Routing:      routing,
		CPUUnits:     cpu,
		MemoryMiB:    memory,
		DesiredCount: desired,
		Network:      normalizeNetwork(raw.VPCID, raw.SubnetIDs),
	}, nil
}

// validateRouting maps domain/zone input onto a RoutingMode. A zone without a
// domain is ignored.
func validateRouting(domainName, zoneID string) (RoutingMode, error) {
	domainName = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domainName)), ".")
	zoneID = strings.TrimSpace(zoneID)

	if domainName == "" {
		return Direct{}, nil
	}
	if len(domainName) > 253 || !hostnameRegex.MatchString(domainName) {
		return nil, NewConfigError("domain_name",
			fmt.Sprintf("%q is not a valid hostname", domainName),
			ErrInvalidDomain)
	}
	if zoneID == "" {
		return nil, NewConfigError("dns_zone_id",
			fmt.Sprintf("domain %q requires a dns zone id", domainName),
			ErrMissingZone)
	}
	return SecureWithRedirect{Domain: domainName, ZoneID: zoneID}, nil
}

func normalizeNetwork(vpcID string, subnetIDs []string) Network {
	n := Network{VPCID: strings.TrimSpace(vpcID)}
	for _, s := range subnetIDs {
		if s = strings.TrimSpace(s); s != "" {
			n.SubnetIDs = append(n.SubnetIDs, s)
		}
	}
	return n
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// IntPtr returns a pointer to v, for filling optional Raw fields.
func IntPtr(v int) *int {
	return &v
}
