package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/promptpilot/internal/executor"
	"github.com/xkilldash9x/promptpilot/internal/healing"
	"github.com/xkilldash9x/promptpilot/internal/prompt"
	"github.com/xkilldash9x/promptpilot/internal/reporting"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyValue accepts timestamps and encoded blobs we don't assert on exactly.
var anyValue = ArgumentMatcherFunc(func(v interface{}) bool {
	return true
})

func newTestStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	store, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return store, mockPool
}

func sampleReport() *reporting.RunReport {
	started := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)
	return &reporting.RunReport{
		RunID:          uuid.NewString(),
		Prompt:         "prompts/transfer.md",
		Environment:    "parabank",
		HealingEnabled: true,
		StartedAt:      started,
		Duration:       2500 * time.Millisecond,
		Status:         reporting.StatusPassed,
		Steps: []executor.StepResult{
			{Ordinal: 1, Description: "Login via API", Action: prompt.ActionAPILogin, Status: executor.StatusPassed, StartedAt: started, Duration: time.Second},
			{Ordinal: 2, Description: "Verify balance", Action: prompt.ActionUIVerify, Status: executor.StatusPassed, StartedAt: started, Duration: time.Second},
		},
		Variables: map[string]any{"accountId": "13344"},
		Healing: []healing.Record{
			{Original: "#balance", Healed: "[id*='balance']", Strategy: healing.StrategyPartialAttribute, Candidate: "[id*='balance']", Timestamp: started},
		},
	}
}

// -- Test Cases --

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	store, mockPool := newTestStore(t, zap.NewNop())

	mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS runs")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPersistRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist run, steps and healing records without rollback errors", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		store, mockPool := newTestStore(t, zap.New(observedZapCore))
		report := sampleReport()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(
				report.RunID, report.Prompt, report.Environment, true, "passed",
				report.StartedAt, int64(2500), anyValue, "", "",
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_steps"}, stepColumns).WillReturnResult(2)
		mockPool.ExpectCopyFrom(pgx.Identifier{"healing_records"}, healingColumns).WillReturnResult(1)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.PersistRun(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should skip copies when there are no steps or healing records", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())
		report := sampleReport()
		report.Steps = nil
		report.Healing = nil
		report.Variables = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, []byte("{}"), anyValue, anyValue).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.PersistRun(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the step copy fails", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())
		report := sampleReport()
		copyErr := errors.New("copy failed")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_steps"}, stepColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := store.PersistRun(ctx, report)
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.Contains(t, err.Error(), "run_steps")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a copy count mismatch", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())
		report := sampleReport()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue, anyValue).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"run_steps"}, stepColumns).WillReturnResult(1)
		mockPool.ExpectRollback()

		err := store.PersistRun(ctx, report)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected 2, got 1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should return error when begin fails", func(t *testing.T) {
		store, mockPool := newTestStore(t, zap.NewNop())
		mockPool.ExpectBegin().WillReturnError(errors.New("connection reset"))

		err := store.PersistRun(ctx, sampleReport())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})
}

func TestRecentRuns(t *testing.T) {
	store, mockPool := newTestStore(t, zap.NewNop())
	started := time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "prompt", "environment", "status", "started_at", "duration_ms", "error_code"}).
		AddRow("run-2", "b.md", "parabank", "failed", started.Add(time.Minute), int64(900), "ASSERTION_FAILED").
		AddRow("run-1", "a.md", "parabank", "passed", started, int64(1200), "")
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).WithArgs(10).WillReturnRows(rows)

	runs, err := store.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, reporting.StatusFailed, runs[0].Status)
	assert.Equal(t, "ASSERTION_FAILED", runs[0].ErrorCode)
	assert.Equal(t, int64(1200), runs[1].DurationMS)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
