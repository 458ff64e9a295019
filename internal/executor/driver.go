// File: internal/executor/driver.go
package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/api"
	"github.com/xkilldash9x/promptpilot/internal/prompt"
	"github.com/xkilldash9x/promptpilot/internal/variables"
)

// APIClient is the HTTP surface API steps run against. *api.Client implements it.
type APIClient interface {
	Get(ctx context.Context, endpoint string) (*api.Response, error)
	Post(ctx context.Context, endpoint string, data any) (*api.Response, error)
	Delete(ctx context.Context, endpoint string) (*api.Response, error)
}

// UISurface is the page surface UI steps run against. *ui.Helper implements it.
type UISurface interface {
	NavigateTo(ctx context.Context, url string) error
	Fill(ctx context.Context, locator, value string) error
	Click(ctx context.Context, locator string) error
	ClickButton(ctx context.Context, text string) error
	ClickLink(ctx context.Context, text string) error
	IsValueInTable(ctx context.Context, tableLocator, value string) (bool, error)
	IsTextPresent(ctx context.Context, text string) bool
	VerifyTextPresent(ctx context.Context, text string) error
}

// handler runs one step. A handler returning skipped=true did nothing worth reporting as a pass.
type handler func(ctx context.Context, step prompt.Step) (skipped bool, err error)

// Driver executes parsed steps in order against one run's store, API client and page.
type Driver struct {
	store    *variables.Store
	api      APIClient
	ui       UISurface
	logger   *zap.Logger
	handlers map[prompt.ActionKind]handler
	now      func() time.Time
}

// New creates a Driver. ui may be nil for API-only prompts; UI steps then fail with ErrUIUnavailable.
func New(store *variables.Store, apiClient APIClient, uiSurface UISurface, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		store:    store,
		api:      apiClient,
		ui:       uiSurface,
		logger:   logger.Named("executor"),
		handlers: make(map[prompt.ActionKind]handler),
		now:      time.Now,
	}
	d.registerHandlers()
	return d
}

func (d *Driver) registerHandlers() {
	d.register(d.executeGet, prompt.ActionAPILogin, prompt.ActionAPIGet)
	d.register(d.executePost, prompt.ActionAPICreate, prompt.ActionAPIPost)
	d.register(d.executeDelete, prompt.ActionAPIDelete)
	d.register(d.requireUI(d.executeNavigate), prompt.ActionUINavigate)
	d.register(d.requireUI(d.executeLogin), prompt.ActionUILogin)
	d.register(d.requireUI(d.executeClick), prompt.ActionUIClick)
	d.register(d.requireUI(d.executeVerify), prompt.ActionUIVerify)
}

func (d *Driver) register(h handler, kinds ...prompt.ActionKind) {
	for _, k := range kinds {
		d.handlers[k] = h
	}
}

func (d *Driver) requireUI(h handler) handler {
	return func(ctx context.Context, step prompt.Step) (bool, error) {
		if d.ui == nil {
			return false, ErrUIUnavailable
		}
		return h(ctx, step)
	}
}

// Execute runs steps strictly in order, each to completion before the next. The first
// failure aborts the run and is returned as a *StepError; the results cover every step
// that was started.
func (d *Driver) Execute(ctx context.Context, steps []prompt.Step) ([]StepResult, error) {
	d.logger.Info("Starting prompt execution.", zap.Int("steps", len(steps)))
	results := make([]StepResult, 0, len(steps))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return results, d.fail(step, err)
		}

		result, err := d.executeStep(ctx, step)
		results = append(results, result)
		if err != nil {
			return results, err
		}
	}

	d.logger.Info("Prompt execution complete.", zap.Int("steps", len(results)))
	return results, nil
}

func (d *Driver) executeStep(ctx context.Context, step prompt.Step) (result StepResult, err error) {
	logger := d.logger.With(
		zap.Int("step", step.Ordinal),
		zap.String("description", step.Description),
		zap.String("action", string(step.Action)),
	)
	logger.Info("Starting step.")

	result = StepResult{
		Ordinal:     step.Ordinal,
		Description: step.Description,
		Action:      step.Action,
		StartedAt:   d.now(),
	}
	defer func() {
		result.Duration = d.now().Sub(result.StartedAt)
	}()

	h, ok := d.handlers[step.Action]
	if !ok {
		logger.Warn("Unknown action type, skipping step.")
		result.Status = StatusSkipped
		return result, nil
	}

	skipped, runErr := d.safeRun(ctx, h, step)
	if runErr != nil {
		stepErr := d.fail(step, runErr)
		result.Status = StatusFailed
		result.Code = stepErr.Code
		result.Error = stepErr.Err.Error()
		logger.Error("Step failed.", zap.String("code", string(stepErr.Code)), zap.Error(runErr))
		return result, stepErr
	}

	result.Status = StatusPassed
	if skipped {
		result.Status = StatusSkipped
	}
	logger.Info("Step completed.", zap.String("status", string(result.Status)))
	return result, nil
}

// safeRun converts a handler panic into an error so one broken step cannot take down a suite.
func (d *Driver) safeRun(ctx context.Context, h handler, step prompt.Step) (skipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Step handler panicked.", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = &StepError{
				Ordinal:     step.Ordinal,
				Description: step.Description,
				Action:      step.Action,
				Code:        ErrCodeExecutorPanic,
				Err:         fmt.Errorf("panic: %v", r),
			}
		}
	}()
	return h(ctx, step)
}

func (d *Driver) fail(step prompt.Step, err error) *StepError {
	if se, ok := err.(*StepError); ok {
		return se
	}
	return &StepError{
		Ordinal:     step.Ordinal,
		Description: step.Description,
		Action:      step.Action,
		Code:        Classify(err),
		Err:         err,
	}
}
