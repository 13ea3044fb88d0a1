package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/invariant"
)

// =============================================================================
// Plan Record
// =============================================================================

// Plan is the persisted result of one planning cycle.
type Plan struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Region      string `json:"region"`
	Routing     string `json:"routing"`
	DomainName  string `json:"domain_name,omitempty"`

	// Blocked is set when any violation prevents provisioning.
	Blocked      bool `json:"blocked"`
	ErrorCount   int  `json:"error_count"`
	WarningCount int  `json:"warning_count"`

	// Config is the raw input the plan was resolved from. Resolution is
	// deterministic, so the graph can be rebuilt from it.
	Config     config.Raw            `json:"config"`
	Violations []invariant.Violation `json:"violations"`

	// Document is the rendered plan document.
	Document json.RawMessage `json:"document,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for plans.
type Store interface {
	// CreatePlan saves a plan, assigning an ID and creation time when unset.
	CreatePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)

	// LatestPlan returns the most recently created plan, or ErrNotFound.
	LatestPlan(ctx context.Context) (*Plan, error)

	// ListPlans returns plans newest first, without their documents.
	ListPlans(ctx context.Context, opts ListOptions) ([]Plan, error)

	// CountPlans returns the number of recorded plans.
	CountPlans(ctx context.Context) (int, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
