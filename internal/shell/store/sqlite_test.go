package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/invariant"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func newTestPlan(fingerprint string, createdAt time.Time) *Plan {
	return &Plan{
		Fingerprint: fingerprint,
		Region:      "us-east-1",
		Routing:     "direct",
		Config:      config.Raw{Region: "us-east-1", DesiredCount: config.IntPtr(1)},
		Document:    json.RawMessage(`{"fingerprint":"` + fingerprint + `"}`),
		CreatedAt:   createdAt,
	}
}

// =============================================================================
// CreatePlan / GetPlan
// =============================================================================

func TestCreatePlan_AssignsIDAndTime(t *testing.T) {
	store := setupTestStore(t)
	plan := &Plan{Fingerprint: "abc", Region: "us-east-1", Routing: "direct"}

	require.NoError(t, store.CreatePlan(context.Background(), plan))

	assert.NotEmpty(t, plan.ID)
	assert.False(t, plan.CreatedAt.IsZero())
}

func TestCreatePlan_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	plan := newTestPlan("fp-1", time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC))
	plan.Routing = "secure-with-redirect"
	plan.DomainName = "agents.example.com"
	plan.Blocked = true
	plan.ErrorCount = 1
	plan.WarningCount = 1
	plan.Violations = []invariant.Violation{
		{Identity: "aws_lb.agents", Rule: invariant.RuleIdleTimeout, Message: "idle timeout is 60", Severity: invariant.SeverityError},
		{Identity: "aws_ecs_service.agents", Rule: invariant.RuleScaleToZero, Message: "desired count is 0", Severity: invariant.SeverityWarning},
	}
	require.NoError(t, store.CreatePlan(ctx, plan))

	got, err := store.GetPlan(ctx, plan.ID)
	require.NoError(t, err)

	assert.Equal(t, plan.ID, got.ID)
	assert.Equal(t, "fp-1", got.Fingerprint)
	assert.Equal(t, "secure-with-redirect", got.Routing)
	assert.Equal(t, "agents.example.com", got.DomainName)
	assert.True(t, got.Blocked)
	assert.Equal(t, 1, got.ErrorCount)
	assert.Equal(t, 1, got.WarningCount)
	assert.Equal(t, plan.Violations, got.Violations)
	assert.Equal(t, plan.Config, got.Config)
	assert.JSONEq(t, `{"fingerprint":"fp-1"}`, string(got.Document))
	assert.True(t, plan.CreatedAt.Equal(got.CreatedAt))
}

func TestCreatePlan_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	plan := newTestPlan("fp", time.Now())
	plan.ID = "fixed"
	require.NoError(t, store.CreatePlan(ctx, plan))

	dup := newTestPlan("fp", time.Now())
	dup.ID = "fixed"
	err := store.CreatePlan(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestCreatePlan_InvalidDocument(t *testing.T) {
	store := setupTestStore(t)
	plan := newTestPlan("fp", time.Now())
	plan.Document = json.RawMessage(`{not json`)

	err := store.CreatePlan(context.Background(), plan)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestGetPlan_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetPlan(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "GetPlan", storeErr.Op)
	assert.Equal(t, "missing", storeErr.ID)
}

// =============================================================================
// LatestPlan / ListPlans
// =============================================================================

func TestLatestPlan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.LatestPlan(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.CreatePlan(ctx, newTestPlan("old", base)))
	require.NoError(t, store.CreatePlan(ctx, newTestPlan("new", base.Add(time.Minute))))

	latest, err := store.LatestPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.Fingerprint)
}

func TestLatestPlan_SameTimestampUsesInsertOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreatePlan(ctx, newTestPlan("first", at)))
	require.NoError(t, store.CreatePlan(ctx, newTestPlan("second", at)))

	latest, err := store.LatestPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", latest.Fingerprint)
}

func TestListPlans(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, fp := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreatePlan(ctx, newTestPlan(fp, base.Add(time.Duration(i)*time.Hour))))
	}

	plans, err := store.ListPlans(ctx, DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, "c", plans[0].Fingerprint)
	assert.Equal(t, "a", plans[2].Fingerprint)
	assert.Nil(t, plans[0].Document)

	page, err := store.ListPlans(ctx, ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Fingerprint)
}

func TestCountPlans(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	count, err := store.CountPlans(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, fp := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreatePlan(ctx, newTestPlan(fp, base.Add(time.Duration(i)*time.Hour))))
	}

	count, err = store.CountPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, store.WithTx(ctx, func(tx Store) error {
		inTx, err := tx.CountPlans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, inTx)
		return nil
	}))
}

func TestListOptions_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListOptions
		want ListOptions
	}{
		{"defaults", ListOptions{}, ListOptions{Limit: 100}},
		{"capped", ListOptions{Limit: 5000}, ListOptions{Limit: 1000}},
		{"negative offset", ListOptions{Limit: 10, Offset: -1}, ListOptions{Limit: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

// =============================================================================
// Transactions
// =============================================================================

func TestWithTx_Commit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var id string
	err := store.WithTx(ctx, func(tx Store) error {
		plan := newTestPlan("tx", time.Now())
		if err := tx.CreatePlan(ctx, plan); err != nil {
			return err
		}
		id = plan.ID
		return nil
	})
	require.NoError(t, err)

	_, err = store.GetPlan(ctx, id)
	assert.NoError(t, err)
}

func TestWithTx_Rollback(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var id string
	err := store.WithTx(ctx, func(tx Store) error {
		plan := newTestPlan("tx", time.Now())
		require.NoError(t, tx.CreatePlan(ctx, plan))
		id = plan.ID
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetPlan(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// StoreError
// =============================================================================

func TestStoreError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StoreError
		want string
	}{
		{"with id", NewStoreError("GetPlan", "plan", "p1", "plan not found", ErrNotFound), "GetPlan plan p1: plan not found"},
		{"with entity", NewStoreError("ListPlans", "plan", "", "boom", nil), "ListPlans plan: boom"},
		{"op only", NewStoreError("WithTx", "", "", "failed", ErrTxFailed), "WithTx: failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
