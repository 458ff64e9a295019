// File: internal/runner/runner.go
// Description: Owns the lifecycle of a prompt run. Every run gets its own variable
// store, API client, page and resolution engine, so runs never share state.

package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/promptpilot/internal/api"
	"github.com/xkilldash9x/promptpilot/internal/browser"
	"github.com/xkilldash9x/promptpilot/internal/config"
	"github.com/xkilldash9x/promptpilot/internal/executor"
	"github.com/xkilldash9x/promptpilot/internal/healing"
	"github.com/xkilldash9x/promptpilot/internal/observability"
	"github.com/xkilldash9x/promptpilot/internal/prompt"
	"github.com/xkilldash9x/promptpilot/internal/reporting"
	"github.com/xkilldash9x/promptpilot/internal/ui"
	"github.com/xkilldash9x/promptpilot/internal/variables"
)

// Browser hands out one isolated page per run. *browser.Manager implements it.
type Browser interface {
	NewPage(ctx context.Context) (browser.Page, func(), error)
}

// APIFactory builds the API client for one run.
type APIFactory func(baseURL string, logger *zap.Logger) executor.APIClient

// Runner executes prompt files against the active environment.
type Runner struct {
	cfg     *config.Config
	env     config.EnvironmentConfig
	browser Browser
	newAPI  APIFactory
	// logger is nil when run loggers should come from the global logger.
	logger *zap.Logger
	now    func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithAPIFactory replaces the default api.Client construction.
func WithAPIFactory(f APIFactory) Option {
	return func(r *Runner) { r.newAPI = f }
}

// WithLogger sets the parent logger for run loggers.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// New creates a Runner. b may be nil for API-only prompts; UI steps then fail with
// executor.ErrUIUnavailable.
func New(cfg *config.Config, b Browser, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cannot initialize runner with nil config")
	}
	env, err := cfg.ActiveEnvironment()
	if err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:     cfg,
		env:     env,
		browser: b,
		now:     time.Now,
	}
	r.newAPI = func(baseURL string, logger *zap.Logger) executor.APIClient {
		return api.NewClient(cfg.API, baseURL, logger)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Runner) runLogger(runID, name string) *zap.Logger {
	if r.logger == nil {
		return observability.RunLogger(runID, name)
	}
	return r.logger.With(zap.String("run_id", runID), zap.String("prompt", name))
}

// RunFile parses and executes one prompt file. The report is never nil; the error is the
// load failure or the failing step's *executor.StepError.
func (r *Runner) RunFile(ctx context.Context, path string) (*reporting.RunReport, error) {
	doc, err := prompt.ParseFile(path)
	if err != nil {
		report := r.newReport(uuid.NewString(), path, false)
		report.Status = reporting.StatusFailed
		report.Error = err.Error()
		report.ErrorCode = executor.ErrCodeExecutionFailure
		return report, err
	}
	return r.RunDocument(ctx, path, doc)
}

func (r *Runner) newReport(runID, name string, healingEnabled bool) *reporting.RunReport {
	return &reporting.RunReport{
		RunID:          runID,
		Prompt:         name,
		Environment:    r.cfg.Environment,
		HealingEnabled: healingEnabled,
		StartedAt:      r.now(),
		Status:         reporting.StatusPassed,
		Steps:          []executor.StepResult{},
		Variables:      map[string]any{},
		Healing:        []healing.Record{},
	}
}

// healingEnabled applies the prompt's directive over the configured default.
func (r *Runner) healingEnabled(doc *prompt.Document) bool {
	if doc.SelfHealing != nil {
		return *doc.SelfHealing
	}
	return r.cfg.Healing.Enabled
}

func needsBrowser(steps []prompt.Step) bool {
	for _, s := range steps {
		if s.Action.IsUI() {
			return true
		}
	}
	return false
}

// RunDocument executes an already parsed prompt in a fresh, isolated context.
func (r *Runner) RunDocument(ctx context.Context, name string, doc *prompt.Document) (*reporting.RunReport, error) {
	runID := uuid.NewString()
	healingOn := r.healingEnabled(doc)
	logger := r.runLogger(runID, name)
	report := r.newReport(runID, name, healingOn)

	logger.Info("Starting run.",
		zap.String("environment", r.cfg.Environment),
		zap.Bool("self_healing", healingOn),
		zap.Int("steps", len(doc.Steps)))

	store := variables.NewStore(logger)
	store.Clear()

	var (
		helper *ui.Helper
		engine *healing.Engine
	)
	if r.browser != nil && needsBrowser(doc.Steps) {
		page, closePage, err := r.browser.NewPage(ctx)
		if err != nil {
			err = fmt.Errorf("failed to open page: %w", err)
			report.Status = reporting.StatusFailed
			report.Error = err.Error()
			report.ErrorCode = executor.ErrCodeUIUnavailable
			report.Duration = store.Elapsed()
			return report, err
		}
		defer closePage()

		var resolver ui.Resolver
		if healingOn {
			engine = healing.NewEngine(page, healing.DefaultStrategies(healing.AcceptanceFromConfig(r.cfg.Healing)), logger)
			resolver = engine
		}
		helper = ui.NewHelper(page, resolver, r.cfg.EffectiveBrowser(), logger)
	}

	var surface executor.UISurface
	if helper != nil {
		surface = helper
	}
	driver := executor.New(store, r.newAPI(r.env.APIBaseURL, logger), surface, logger)
	results, runErr := driver.Execute(ctx, doc.Steps)

	if engine != nil {
		engine.LogSummary()
		report.Healing = engine.Log()
	}
	store.LogSnapshot()

	report.Steps = results
	report.Variables = store.Snapshot()
	report.Duration = store.Elapsed()

	if runErr != nil {
		report.Status = reporting.StatusFailed
		report.Error = runErr.Error()
		report.ErrorCode = executor.Classify(runErr)
		var stepErr *executor.StepError
		if helper != nil && errors.As(runErr, &stepErr) && stepErr.Action.IsUI() {
			report.Screenshot = r.failureScreenshot(helper, runID, logger)
		}
		logger.Error("Run failed.", zap.Error(runErr), zap.Duration("duration", report.Duration))
		return report, runErr
	}

	logger.Info("Run passed.", zap.Duration("duration", report.Duration))
	return report, nil
}

// failureScreenshot captures the page after a failed UI step. It uses its own context so a
// cancelled run can still be photographed.
func (r *Runner) failureScreenshot(helper *ui.Helper, runID string, logger *zap.Logger) string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	path, err := helper.Screenshot(ctx, "failure-"+runID)
	if err != nil {
		logger.Warn("Failed to capture failure screenshot.", zap.Error(err))
		return ""
	}
	return path
}

// RunSuite runs every file with at most cfg.Runner.Parallel runs in flight. Reports are
// returned in input order; runs that never started have no report. Unless
// continue_suite is set, the first failing run cancels the rest.
func (r *Runner) RunSuite(ctx context.Context, paths []string) ([]*reporting.RunReport, error) {
	g, groupCtx := errgroup.WithContext(ctx)
	limit := r.cfg.Runner.Parallel
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	reports := make([]*reporting.RunReport, len(paths))
	failures := make([]error, len(paths))

	for i, path := range paths {
		if groupCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			report, err := r.RunFile(groupCtx, path)
			reports[i] = report
			if err == nil {
				return nil
			}
			failures[i] = fmt.Errorf("%s: %w", path, err)
			if r.cfg.Runner.ContinueSuite {
				return nil
			}
			return failures[i]
		})
	}
	_ = g.Wait()

	completed := make([]*reporting.RunReport, 0, len(reports))
	for _, rep := range reports {
		if rep != nil {
			completed = append(completed, rep)
		}
	}
	return completed, errors.Join(failures...)
}
