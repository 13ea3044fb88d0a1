package api

import (
	"encoding/json"
	"time"

	"github.com/artpar/fa-topology/internal/core/invariant"
	"github.com/artpar/fa-topology/internal/core/output"
)

// =============================================================================
// Request Types
// =============================================================================

// PlanRequest is the request body for running a planning cycle.
type PlanRequest struct {
	Region       string   `json:"region"`
	DomainName   string   `json:"domain_name,omitempty"`
	DNSZoneID    string   `json:"dns_zone_id,omitempty"`
	CPUUnits     *int     `json:"cpu_units,omitempty"`
	MemoryMiB    *int     `json:"memory_mib,omitempty"`
	DesiredCount *int     `json:"desired_count,omitempty"`
	VPCID        string   `json:"vpc_id,omitempty"`
	SubnetIDs    []string `json:"subnet_ids,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// PlanResponse is the response for a planning cycle.
type PlanResponse struct {
	ID                  string                  `json:"id,omitempty"`
	Fingerprint         string                  `json:"fingerprint"`
	Routing             string                  `json:"routing"`
	Changed             bool                    `json:"changed"`
	PreviousFingerprint string                  `json:"previous_fingerprint,omitempty"`
	Blocked             bool                    `json:"blocked"`
	Outputs             map[string]output.Value `json:"outputs"`
	Violations          []invariant.Violation   `json:"violations"`
	ApplyOrder          []string                `json:"apply_order"`
}

// PlanRecordResponse is the response for a recorded plan.
type PlanRecordResponse struct {
	ID           string                `json:"id"`
	Fingerprint  string                `json:"fingerprint"`
	Region       string                `json:"region"`
	Routing      string                `json:"routing"`
	DomainName   string                `json:"domain_name,omitempty"`
	Blocked      bool                  `json:"blocked"`
	ErrorCount   int                   `json:"error_count"`
	WarningCount int                   `json:"warning_count"`
	Violations   []invariant.Violation `json:"violations"`
	Document     json.RawMessage       `json:"document,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// ListPlansResponse is the response for listing plans.
type ListPlansResponse struct {
	Plans  []PlanRecordResponse `json:"plans"`
	Total  int                  `json:"total"` // all recorded plans, not just this page
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}
