package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/reporting"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists run reports to PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

//go:embed schema.sql
var schema string

// EnsureSchema creates the tables used by PersistRun when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const sqlInsertRun = `
        INSERT INTO runs (id, prompt, environment, healing_enabled, status, started_at, duration_ms, variables, error, error_code)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
    `

var (
	stepColumns    = []string{"run_id", "ordinal", "description", "action", "status", "started_at", "duration_ms", "error_code", "error"}
	healingColumns = []string{"run_id", "original", "healed", "strategy", "candidate", "healed_at"}
)

// PersistRun writes a run, its steps and its healing records in one transaction.
func (s *Store) PersistRun(ctx context.Context, report *reporting.RunReport) error {
	variables, err := json.Marshal(report.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode variables for run %s: %w", report.RunID, err)
	}
	if report.Variables == nil {
		variables = []byte("{}")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns ErrTxClosed.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertRun,
		report.RunID, report.Prompt, report.Environment, report.HealingEnabled, string(report.Status),
		report.StartedAt.UTC(), report.Duration.Milliseconds(), variables, report.Error, string(report.ErrorCode),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	if err := s.persistSteps(ctx, tx, report); err != nil {
		return err
	}
	if err := s.persistHealing(ctx, tx, report); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Persisted run.",
		zap.String("run_id", report.RunID),
		zap.Int("steps", len(report.Steps)),
		zap.Int("healed", len(report.Healing)))
	return nil
}

func (s *Store) persistSteps(ctx context.Context, tx pgx.Tx, report *reporting.RunReport) error {
	if len(report.Steps) == 0 {
		return nil
	}
	rows := make([][]any, len(report.Steps))
	for i, step := range report.Steps {
		rows[i] = []any{
			report.RunID, step.Ordinal, step.Description, string(step.Action), string(step.Status),
			step.StartedAt.UTC(), step.Duration.Milliseconds(), string(step.Code), step.Error,
		}
	}
	return copyRows(ctx, tx, "run_steps", stepColumns, rows)
}

func (s *Store) persistHealing(ctx context.Context, tx pgx.Tx, report *reporting.RunReport) error {
	if len(report.Healing) == 0 {
		return nil
	}
	rows := make([][]any, len(report.Healing))
	for i, rec := range report.Healing {
		rows[i] = []any{report.RunID, rec.Original, rec.Healed, rec.Strategy, rec.Candidate, rec.Timestamp.UTC()}
	}
	return copyRows(ctx, tx, "healing_records", healingColumns, rows)
}

func copyRows(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) error {
	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", table, err)
	}
	if int(copyCount) != len(rows) {
		return fmt.Errorf("mismatch in copied %s count: expected %d, got %d", table, len(rows), copyCount)
	}
	return nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID       string
	Prompt      string
	Environment string
	Status      reporting.Status
	StartedAt   time.Time
	DurationMS  int64
	ErrorCode   string
}

const sqlRecentRuns = `
        SELECT id, prompt, environment, status, started_at, duration_ms, error_code
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.pool.Query(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var status string
		if err := rows.Scan(&r.RunID, &r.Prompt, &r.Environment, &status, &r.StartedAt, &r.DurationMS, &r.ErrorCode); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Status = reporting.Status(status)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
