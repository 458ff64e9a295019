// File: cmd/providers.go
package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/browser"
	"github.com/xkilldash9x/promptpilot/internal/config"
	"github.com/xkilldash9x/promptpilot/internal/reporting"
	"github.com/xkilldash9x/promptpilot/internal/runner"
	"github.com/xkilldash9x/promptpilot/internal/store"
)

// runStore is the persistence surface the commands need. *store.Store implements it.
type runStore interface {
	PersistRun(ctx context.Context, report *reporting.RunReport) error
	RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// storeProvider creates a runStore. Tests inject a fake instead of a live database.
type storeProvider interface {
	// Create returns the store and a cleanup function that releases its resources.
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (runStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

func (defaultStoreProvider) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (runStore, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (PROMPTPILOT_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}

// browserLauncher starts the browser backing UI steps. The returned shutdown is safe to
// call when nothing was launched.
type browserLauncher func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (runner.Browser, func())

// Swapped out in tests.
var (
	newStoreProvider = func() storeProvider { return defaultStoreProvider{} }
	launchBrowser    browserLauncher = launchLazyBrowser
)

// lazyBrowser launches Chrome on the first page request, so API-only suites never start it.
type lazyBrowser struct {
	ctx    context.Context
	cfg    config.BrowserConfig
	logger *zap.Logger

	once    sync.Once
	manager *browser.Manager
	err     error
}

func launchLazyBrowser(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (runner.Browser, func()) {
	b := &lazyBrowser{ctx: ctx, cfg: cfg, logger: logger}
	return b, b.shutdown
}

func (b *lazyBrowser) NewPage(ctx context.Context) (browser.Page, func(), error) {
	b.once.Do(func() {
		b.manager, b.err = browser.NewManager(b.ctx, b.cfg, b.logger)
	})
	if b.err != nil {
		return nil, nil, b.err
	}
	return b.manager.NewPage(ctx)
}

func (b *lazyBrowser) shutdown() {
	if b.manager == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.manager.Shutdown(ctx); err != nil {
		b.logger.Warn("Browser shutdown failed.", zap.Error(err))
	}
}
