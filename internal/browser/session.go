// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/config"
)

const defaultPollInterval = 100 * time.Millisecond

// Session is a single chromedp tab implementing Page.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	// runActionsFunc and evaluateFunc are replaced in tests.
	runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error
	evaluateFunc   func(ctx context.Context, script string, res interface{}) error

	pollInterval time.Duration
	closeOnce    sync.Once
	onClose      func()
}

var _ Page = (*Session)(nil)

func newSession(tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	s := &Session{
		id:           uuid.New().String(),
		ctx:          tabCtx,
		cancel:       cancel,
		cfg:          cfg,
		pollInterval: defaultPollInterval,
	}
	s.logger = logger.Named("session").With(zap.String("session_id", s.id))
	s.runActionsFunc = s.runActions
	s.evaluateFunc = s.evaluate
	return s
}

func (s *Session) ID() string { return s.id }

// opContext derives an operation context from the tab that is also cancelled with ctx.
func (s *Session) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	return chromedp.Run(ctx, actions...)
}

func (s *Session) evaluate(ctx context.Context, script string, res interface{}) error {
	return chromedp.Run(ctx, chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
}

// Navigate loads url and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.opContext(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.runActionsFunc(opCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return s.pause(ctx)
}

func (s *Session) Locate(expression string) Locator {
	return &locator{session: s, spec: querySpec{}.with(queryStep{Kind: stepSelector, Value: expression, Index: -1})}
}

func (s *Session) GetByRole(role, name string) Locator {
	return &locator{session: s, spec: querySpec{}.with(queryStep{Kind: stepRole, Role: role, Name: name, Index: -1})}
}

func (s *Session) GetByText(text string) Locator {
	return &locator{session: s, spec: querySpec{}.with(queryStep{Kind: stepText, Value: text, Index: -1})}
}

func (s *Session) Title(ctx context.Context) (string, error) {
	opCtx, cancel := s.opContext(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var title string
	if err := s.runActionsFunc(opCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

// Screenshot writes a full-page PNG to path, creating parent directories.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	opCtx, cancel := s.opContext(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	var buf []byte
	if err := s.runActionsFunc(opCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	s.logger.Info("Screenshot saved.", zap.String("path", path))
	return nil
}

// Close releases the tab. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// pause applies the configured slow-motion delay after a page-changing action.
func (s *Session) pause(ctx context.Context) error {
	if s.cfg.SlowMo <= 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.SlowMo)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
