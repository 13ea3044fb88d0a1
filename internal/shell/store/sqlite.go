package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/invariant"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreatePlan(ctx context.Context, plan *Plan) error {
	return createPlan(ctx, s.db, plan)
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*Plan, error) {
	return getPlan(ctx, s.db, id)
}

func (s *SQLiteStore) LatestPlan(ctx context.Context) (*Plan, error) {
	return latestPlan(ctx, s.db)
}

func (s *SQLiteStore) ListPlans(ctx context.Context, opts ListOptions) ([]Plan, error) {
	return listPlans(ctx, s.db, opts)
}

func (s *SQLiteStore) CountPlans(ctx context.Context) (int, error) {
	return countPlans(ctx, s.db)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	if err := fn(&txSQLiteStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreatePlan(ctx context.Context, plan *Plan) error {
	return createPlan(ctx, s.tx, plan)
}

func (s *txSQLiteStore) GetPlan(ctx context.Context, id string) (*Plan, error) {
	return getPlan(ctx, s.tx, id)
}

func (s *txSQLiteStore) LatestPlan(ctx context.Context) (*Plan, error) {
	return latestPlan(ctx, s.tx)
}

func (s *txSQLiteStore) ListPlans(ctx context.Context, opts ListOptions) ([]Plan, error) {
	return listPlans(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CountPlans(ctx context.Context) (int, error) {
	return countPlans(ctx, s.tx)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	return nil
}

// =============================================================================
// Plan Operations
// =============================================================================

// planRow represents a plan row in the database.
type planRow struct {
	ID           string `db:"id"`
	Fingerprint  string `db:"fingerprint"`
	Region       string `db:"region"`
	Routing      string `db:"routing"`
	DomainName   string `db:"domain_name"`
	Blocked      bool   `db:"blocked"`
	ErrorCount   int    `db:"error_count"`
	WarningCount int    `db:"warning_count"`
	Config       string `db:"config"`
	Violations   string `db:"violations"`
	Document     string `db:"document"`
	CreatedAt    string `db:"created_at"`
}

// summaryColumns omits the document, which can be large.
const summaryColumns = `id, fingerprint, region, routing, domain_name, blocked,
	error_count, warning_count, config, violations, '' AS document, created_at`

func createPlan(ctx context.Context, exec executor, plan *Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	configJSON, err := json.Marshal(plan.Config)
	if err != nil {
		return NewStoreError("CreatePlan", "plan", plan.ID, "failed to serialize config", ErrInvalidData)
	}
	violations := plan.Violations
	if violations == nil {
		violations = []invariant.Violation{}
	}
	violationsJSON, err := json.Marshal(violations)
	if err != nil {
		return NewStoreError("CreatePlan", "plan", plan.ID, "failed to serialize violations", ErrInvalidData)
	}
	document := string(plan.Document)
	if document == "" {
		document = "{}"
	} else if !json.Valid(plan.Document) {
		return NewStoreError("CreatePlan", "plan", plan.ID, "document is not valid JSON", ErrInvalidData)
	}

	query := `
		INSERT INTO plans (
			id, fingerprint, region, routing, domain_name, blocked,
			error_count, warning_count, config, violations, document, created_at
		) VALUES (
			:id, :fingerprint, :region, :routing, :domain_name, :blocked,
			:error_count, :warning_count, :config, :violations, :document, :created_at
		)`

	row := map[string]any{
		"id":            plan.ID,
		"fingerprint":   plan.Fingerprint,
		"region":        plan.Region,
		"routing":       plan.Routing,
		"domain_name":   plan.DomainName,
		"blocked":       plan.Blocked,
		"error_count":   plan.ErrorCount,
		"warning_count": plan.WarningCount,
		"config":        string(configJSON),
		"violations":    string(violationsJSON),
		"document":      document,
		"created_at":    plan.CreatedAt.UTC().Format(timeFormat),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: plans.id") {
			return NewStoreError("CreatePlan", "plan", plan.ID, "plan with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("CreatePlan", "plan", plan.ID, err.Error(), err)
	}

	return nil
}

func getPlan(ctx context.Context, exec executor, id string) (*Plan, error) {
	query := `SELECT * FROM plans WHERE id = ?`

	var row planRow
	if err := exec.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetPlan", "plan", id, "plan not found", ErrNotFound)
		}
		return nil, NewStoreError("GetPlan", "plan", id, err.Error(), err)
	}

	return rowToPlan(&row)
}

func latestPlan(ctx context.Context, exec executor) (*Plan, error) {
	query := `SELECT * FROM plans ORDER BY created_at DESC, rowid DESC LIMIT 1`

	var row planRow
	if err := exec.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("LatestPlan", "plan", "", "no plans recorded", ErrNotFound)
		}
		return nil, NewStoreError("LatestPlan", "plan", "", err.Error(), err)
	}

	return rowToPlan(&row)
}

func listPlans(ctx context.Context, exec executor, opts ListOptions) ([]Plan, error) {
	opts = opts.Normalize()
	query := `SELECT ` + summaryColumns + ` FROM plans ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []planRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListPlans", "plan", "", err.Error(), err)
	}

	plans := make([]Plan, 0, len(rows))
	for _, row := range rows {
		plan, err := rowToPlan(&row)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}

	return plans, nil
}

func countPlans(ctx context.Context, exec executor) (int, error) {
	var count int
	if err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM plans`); err != nil {
		return 0, NewStoreError("CountPlans", "plan", "", err.Error(), err)
	}
	return count, nil
}

func rowToPlan(row *planRow) (*Plan, error) {
	createdAt, _ := time.Parse(timeFormat, row.CreatedAt)

	var raw config.Raw
	if err := json.Unmarshal([]byte(row.Config), &raw); err != nil {
		return nil, NewStoreError("rowToPlan", "plan", row.ID, "failed to parse config", ErrInvalidData)
	}

	var violations []invariant.Violation
	if row.Violations != "" {
		if err := json.Unmarshal([]byte(row.Violations), &violations); err != nil {
			return nil, NewStoreError("rowToPlan", "plan", row.ID, "failed to parse violations", ErrInvalidData)
		}
	}

	var document json.RawMessage
	if row.Document != "" {
		document = json.RawMessage(row.Document)
	}

	return &Plan{
		ID:           row.ID,
		Fingerprint:  row.Fingerprint,
		Region:       row.Region,
		Routing:      row.Routing,
		DomainName:   row.DomainName,
		Blocked:      row.Blocked,
		ErrorCount:   row.ErrorCount,
		WarningCount: row.WarningCount,
		Config:       raw,
		Violations:   violations,
		Document:     document,
		CreatedAt:    createdAt,
	}, nil
}
