// Package planner runs planning cycles with I/O.
// This is part of the Imperative Shell - it discovers the network, calls the
// pure resolver, checker and projector, and records the result.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/graph"
	"github.com/artpar/fa-topology/internal/core/invariant"
	"github.com/artpar/fa-topology/internal/core/output"
	"github.com/artpar/fa-topology/internal/core/topology"
	"github.com/artpar/fa-topology/internal/shell/render"
	"github.com/artpar/fa-topology/internal/shell/store"
)

// =============================================================================
// Service Errors
// =============================================================================

// ErrBlocked is returned, together with the result, when invariant
// violations prevent provisioning. The error also wraps each violation.
var ErrBlocked = errors.New("plan blocked by invariant violations")

// ErrDiscovery wraps every network discovery failure.
var ErrDiscovery = errors.New("network discovery failed")

// =============================================================================
// Planning Service
// =============================================================================

// NetworkFiller completes raw configuration with network placement.
type NetworkFiller interface {
	Fill(ctx context.Context, raw config.Raw) (config.Raw, error)
}

// Service runs the planning pipeline.
type Service struct {
	store   store.Store
	network NetworkFiller
	logger  *slog.Logger

	check func(*graph.Graph) []invariant.Violation
}

// NewService creates a new planning service.
// s may be nil to plan without recording history; network may be nil to
// skip discovery.
func NewService(s store.Store, network NetworkFiller, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   s,
		network: network,
		logger:  logger.With("component", "planner"),
		check:   invariant.Check,
	}
}

// =============================================================================
// Plan Result
// =============================================================================

// Result is the outcome of one planning cycle.
type Result struct {
	Config     config.Configuration
	Graph      *graph.Graph
	Outputs    output.OutputSet
	Violations []invariant.Violation
	Document   render.Document

	// Record is the stored plan, or nil when history is disabled.
	Record *store.Plan

	// Changed reports whether the fingerprint differs from the previously
	// recorded plan. It is true when there is no previous plan.
	Changed bool

	// PreviousFingerprint is empty when there is no previous plan.
	PreviousFingerprint string
}

// Blocked reports whether provisioning must not proceed.
func (r *Result) Blocked() bool {
	return len(invariant.Blocking(r.Violations)) > 0
}

// =============================================================================
// Operations
// =============================================================================

// Plan validates raw, resolves and checks the graph, projects the outputs and
// records the cycle. Configuration errors are returned without a result. When
// the graph has blocking violations the result is returned along with an
// error wrapping ErrBlocked.
func (s *Service) Plan(ctx context.Context, raw config.Raw) (*Result, error) {
	if s.network != nil {
		filled, err := s.network.Fill(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
		}
		raw = filled
	}

	result, err := s.evaluate(raw)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.record(ctx, raw, result); err != nil {
			return nil, err
		}
	}

	s.logger.Info("plan resolved",
		"fingerprint", result.Document.Fingerprint,
		"routing", result.Document.Routing,
		"resources", result.Graph.Len(),
		"changed", result.Changed,
		"violations", len(result.Violations),
	)

	return result, s.blockedErr(result)
}

// Rebuild re-resolves a recorded plan from its stored configuration.
// Resolution is deterministic, so the result matches the original cycle.
func (s *Service) Rebuild(ctx context.Context, id string) (*Result, error) {
	if s.store == nil {
		return nil, fmt.Errorf("rebuild plan %s: history is disabled", id)
	}

	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.evaluate(plan.Config)
	if err != nil {
		return nil, fmt.Errorf("rebuild plan %s: %w", id, err)
	}
	result.Record = plan

	if result.Document.Fingerprint != plan.Fingerprint {
		s.logger.Warn("rebuilt plan differs from record",
			"plan_id", id,
			"recorded", plan.Fingerprint,
			"rebuilt", result.Document.Fingerprint,
		)
	}
	return result, nil
}

// evaluate runs the pure pipeline.
func (s *Service) evaluate(raw config.Raw) (*Result, error) {
	cfg, err := config.Validate(raw)
	if err != nil {
		return nil, err
	}

	g := topology.Resolve(cfg)
	violations := s.check(g)
	for _, v := range invariant.Warnings(violations) {
		s.logger.Warn("plan warning", "rule", v.Rule, "identity", v.Identity, "message", v.Message)
	}

	outs, err := output.Project(g)
	if err != nil {
		return nil, fmt.Errorf("project outputs: %w", err)
	}

	doc, err := render.NewDocument(cfg, g, outs, violations)
	if err != nil {
		return nil, err
	}

	return &Result{
		Config:     cfg,
		Graph:      g,
		Outputs:    outs,
		Violations: violations,
		Document:   doc,
		Changed:    true,
	}, nil
}

// record compares against the latest plan and stores the new one.
func (s *Service) record(ctx context.Context, raw config.Raw, result *Result) error {
	document, err := render.JSON(result.Document)
	if err != nil {
		return err
	}

	blocking := invariant.Blocking(result.Violations)
	plan := &store.Plan{
		Fingerprint:  result.Document.Fingerprint,
		Region:       result.Config.Region,
		Routing:      result.Config.Routing.Name(),
		DomainName:   result.Config.DomainName(),
		Blocked:      len(blocking) > 0,
		ErrorCount:   len(blocking),
		WarningCount: len(result.Violations) - len(blocking),
		Config:       raw,
		Violations:   result.Violations,
		Document:     document,
	}

	return s.store.WithTx(ctx, func(tx store.Store) error {
		previous, err := tx.LatestPlan(ctx)
		switch {
		case err == nil:
			result.PreviousFingerprint = previous.Fingerprint
			result.Changed = previous.Fingerprint != plan.Fingerprint
		case errors.Is(err, store.ErrNotFound):
		default:
			return err
		}

		if err := tx.CreatePlan(ctx, plan); err != nil {
			return err
		}
		result.Record = plan
		return nil
	})
}

func (s *Service) blockedErr(result *Result) error {
	err := invariant.Err(result.Violations)
	if err == nil {
		return nil
	}
	s.logger.Error("plan blocked", "errors", len(invariant.Blocking(result.Violations)))
	return fmt.Errorf("%w: %w", ErrBlocked, err)
}

// History lists recorded plans, newest first.
func (s *Service) History(ctx context.Context, opts store.ListOptions) ([]store.Plan, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListPlans(ctx, opts)
}

// Count returns the number of recorded plans.
func (s *Service) Count(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.CountPlans(ctx)
}

// Get returns a recorded plan.
func (s *Service) Get(ctx context.Context, id string) (*store.Plan, error) {
	if s.store == nil {
		return nil, fmt.Errorf("get plan %s: %w", id, store.ErrNotFound)
	}
	return s.store.GetPlan(ctx, id)
}
