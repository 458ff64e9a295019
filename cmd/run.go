// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/config"
	"github.com/xkilldash9x/promptpilot/internal/observability"
	"github.com/xkilldash9x/promptpilot/internal/reporting"
	"github.com/xkilldash9x/promptpilot/internal/runner"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <prompt.md>...",
		Short: "Execute one or more prompt files",
		Long: `Parses each prompt file into steps and executes them in order against the selected
environment. Every file runs in its own isolated context: a fresh variable store, API
client and browser page. Results are written with the configured reporter and, when
database.url is set, persisted to PostgreSQL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runPrompts(ctx, observability.GetLogger(), cfg, args)
		},
	}

	flags := runCmd.Flags()
	flags.String("env", "", "environment profile to run against (overrides TEST_ENV)")
	flags.IntP("parallel", "p", 1, "maximum number of prompt files run concurrently")
	flags.Bool("continue", false, "keep running the remaining files after one fails")
	flags.Bool("healing", false, "enable self-healing locators for prompts without a Self-Healing directive")
	flags.Bool("headless", true, "run the browser headless")
	flags.StringP("format", "f", "text", "report format (text, json, junit)")
	flags.StringP("output", "o", "", "report file path (default stdout)")
	return runCmd
}

// runPrompts contains the core, testable logic of the run command.
func runPrompts(ctx context.Context, logger *zap.Logger, cfg *config.Config, paths []string) error {
	reporter, err := reporting.New(cfg.Report.Format, cfg.Report.Output, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}

	b, shutdown := launchBrowser(ctx, cfg.EffectiveBrowser(), logger)
	defer shutdown()

	r, err := runner.New(cfg, b)
	if err != nil {
		_ = reporter.Close()
		return err
	}

	logger.Info("Starting prompt suite.",
		zap.Int("files", len(paths)),
		zap.String("environment", cfg.Environment),
		zap.Int("parallel", cfg.Runner.Parallel))

	reports, runErr := r.RunSuite(ctx, paths)

	var writeErr error
	for _, rep := range reports {
		writeErr = errors.Join(writeErr, reporter.Write(rep))
	}
	writeErr = errors.Join(writeErr, reporter.Close())
	if writeErr != nil {
		logger.Error("Failed to write report.", zap.Error(writeErr))
	}

	persistErr := persistReports(ctx, logger, cfg, reports)

	failed := len(paths) - len(reports)
	for _, rep := range reports {
		if !rep.Passed() {
			failed++
		}
	}
	if runErr != nil || failed > 0 {
		logger.Debug("Suite failed.", zap.Error(runErr))
		return errors.Join(fmt.Errorf("%d of %d prompt runs failed", failed, len(paths)), writeErr, persistErr)
	}
	return errors.Join(writeErr, persistErr)
}

// persistReports stores every report when a database is configured.
func persistReports(ctx context.Context, logger *zap.Logger, cfg *config.Config, reports []*reporting.RunReport) error {
	if cfg.Database.URL == "" || len(reports) == 0 {
		return nil
	}
	// Reports are stored even when the suite was interrupted.
	ctx = context.WithoutCancel(ctx)

	s, cleanup, err := newStoreProvider().Create(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize store.", zap.Error(err))
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	var errs error
	for _, rep := range reports {
		if err := s.PersistRun(ctx, rep); err != nil {
			logger.Error("Failed to persist run.", zap.String("run_id", rep.RunID), zap.Error(err))
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
