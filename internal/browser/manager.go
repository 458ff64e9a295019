// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/config"
)

const launchTimeout = 30 * time.Second

// Manager owns the Chrome process. Every run gets its own tab via NewSession.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	// browserCtx is the first chromedp context; cancelling it closes Chrome.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewManager launches Chrome and verifies it responds.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}

	m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocatorCtx)

	// The first Run binds Chrome's lifetime to its context, so it must not carry a timeout.
	err := chromedp.Run(m.browserCtx)
	if err == nil {
		launchCtx, cancel := context.WithTimeout(m.browserCtx, launchTimeout)
		err = chromedp.Run(launchCtx, chromedp.Navigate("about:blank"))
		cancel()
	}
	if err != nil {
		m.browserCancel()
		m.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return m, nil
}

func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
		chromedp.WindowSize(int(m.cfg.Viewport.Width), int(m.cfg.Viewport.Height)),
	)

	for _, arg := range m.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Containers on Linux need these to start Chrome at all.
	if goruntime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// NewSession opens an isolated tab with the configured viewport.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(m.browserCtx)
	s := newSession(tabCtx, cancel, m.cfg, m.logger)

	err := chromedp.Run(tabCtx)
	if err == nil {
		initCtx, initCancel := s.opContext(ctx, launchTimeout)
		err = chromedp.Run(initCtx, emulation.SetDeviceMetricsOverride(m.cfg.Viewport.Width, m.cfg.Viewport.Height, 1, false))
		initCancel()
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	m.wg.Add(1)
	s.onClose = m.wg.Done
	m.logger.Debug("Session opened.", zap.String("session_id", s.ID()))
	return s, nil
}

// NewPage opens a session and returns it with the function that releases it.
func (m *Manager) NewPage(ctx context.Context) (Page, func(), error) {
	s, err := m.NewSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

// Shutdown waits for open sessions to close, bounded by ctx, then stops Chrome.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("timed out waiting for browser sessions to close: %w", ctx.Err())
	}

	m.browserCancel()
	m.allocatorCancel()
	m.logger.Info("Browser shut down.")
	return err
}
