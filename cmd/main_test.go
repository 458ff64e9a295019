// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/browser"
	bt "github.com/xkilldash9x/promptpilot/internal/browser/browsertest"
	"github.com/xkilldash9x/promptpilot/internal/config"
	"github.com/xkilldash9x/promptpilot/internal/observability"
	"github.com/xkilldash9x/promptpilot/internal/reporting"
	"github.com/xkilldash9x/promptpilot/internal/runner"
	"github.com/xkilldash9x/promptpilot/internal/store"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()
	reset := func() {
		viper.Reset()
		cfgFile = ""
		observability.ResetForTest()
		newStoreProvider = func() storeProvider { return defaultStoreProvider{} }
		launchBrowser = launchLazyBrowser
	}
	reset()
	t.Cleanup(reset)
}

// executeCommand runs a pristine root command and returns everything it printed.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

type testConfigOptions struct {
	apiBase     string
	databaseURL string
	logFile     string
}

// writeTestConfig writes a config.yaml with a "test" and an "other" environment.
func writeTestConfig(t *testing.T, opts testConfigOptions) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`environment: test
environments:
  test:
    base_url: https://bank.test
    api_base_url: %q
  other:
    base_url: https://other.test
    api_base_url: %q
logger:
  level: error
  log_file: %q
browser:
  screenshot_dir: %q
  action_timeout: 100ms
database:
  url: %q
`, opts.apiBase, opts.apiBase, opts.logFile, filepath.Join(dir, "shots"), opts.databaseURL)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// fakeStore records persisted reports.
type fakeStore struct {
	mu        sync.Mutex
	persisted []*reporting.RunReport
	runs      []store.RunSummary
	err       error
}

func (f *fakeStore) PersistRun(ctx context.Context, report *reporting.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.persisted = append(f.persisted, report)
	return nil
}

func (f *fakeStore) RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if len(f.runs) > limit {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type fakeStoreProvider struct {
	store    *fakeStore
	err      error
	cleanups int
}

func (p *fakeStoreProvider) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) (runStore, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.store, func() { p.cleanups++ }, nil
}

func useStore(t *testing.T, p *fakeStoreProvider) {
	t.Helper()
	newStoreProvider = func() storeProvider { return p }
}

type fakeBrowser struct {
	page     *bt.Page
	launched bool
	shutdown bool
}

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, func(), error) {
	return b.page, func() {}, nil
}

func useBrowser(t *testing.T, page *bt.Page) *fakeBrowser {
	t.Helper()
	b := &fakeBrowser{page: page}
	launchBrowser = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (runner.Browser, func()) {
		b.launched = true
		return b, func() { b.shutdown = true }
	}
	return b
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
