// File: internal/ui/helper.go
package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/browser"
	"github.com/xkilldash9x/promptpilot/internal/config"
	"github.com/xkilldash9x/promptpilot/internal/variables"
)

// ErrAssertionFailed marks an expectation about the page that did not hold.
var ErrAssertionFailed = errors.New("assertion failed")

// Resolver turns a possibly stale locator into a usable element.
// *healing.Engine implements it.
type Resolver interface {
	Resolve(ctx context.Context, reference, description string) (browser.Locator, error)
}

// Helper performs page interactions for one run. When a Resolver is set every
// locator-based operation goes through it, otherwise locators are used as written.
type Helper struct {
	page     browser.Page
	resolver Resolver
	cfg      config.BrowserConfig
	logger   *zap.Logger
}

// NewHelper wraps page. resolver may be nil to disable self-healing.
func NewHelper(page browser.Page, resolver Resolver, cfg config.BrowserConfig, logger *zap.Logger) *Helper {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Helper{page: page, resolver: resolver, cfg: cfg, logger: logger.Named("ui")}
	if resolver != nil {
		h.logger.Info("Self-healing enabled for this page.")
	}
	return h
}

// Page returns the underlying page.
func (h *Helper) Page() browser.Page { return h.page }

// SelfHealing reports whether locators go through a Resolver.
func (h *Helper) SelfHealing() bool { return h.resolver != nil }

// element returns the first element for locator. The locator doubles as the description
// handed to the resolver. Without a resolver, a bare word is looked up as visible text
// first and as a selector when no text matches.
func (h *Helper) element(ctx context.Context, locator string) (browser.Locator, error) {
	if h.resolver != nil {
		return h.resolver.Resolve(ctx, locator, locator)
	}
	if isBareText(locator) {
		byText := h.page.GetByText(locator)
		if n, err := byText.Count(ctx); err == nil && n > 0 {
			return byText.First(), nil
		}
	}
	return h.page.Locate(locator).First(), nil
}

// isBareText reports a locator that is neither XPath nor carries selector syntax.
func isBareText(locator string) bool {
	if strings.HasPrefix(locator, "//") || strings.HasPrefix(locator, "(//") {
		return false
	}
	return !strings.ContainsAny(locator, "#.[=")
}

func (h *Helper) NavigateTo(ctx context.Context, url string) error {
	h.logger.Info("Navigating.", zap.String("url", url))
	if err := h.page.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (h *Helper) Fill(ctx context.Context, locator, value string) error {
	h.logger.Info("Filling.", zap.String("locator", locator))
	el, err := h.element(ctx, locator)
	if err != nil {
		return err
	}
	if err := el.Fill(ctx, value); err != nil {
		return fmt.Errorf("failed to fill %s: %w", locator, err)
	}
	return nil
}

func (h *Helper) Click(ctx context.Context, locator string) error {
	h.logger.Info("Clicking.", zap.String("locator", locator))
	el, err := h.element(ctx, locator)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to click %s: %w", locator, err)
	}
	return nil
}

// ClickButton clicks the button whose accessible name matches text.
func (h *Helper) ClickButton(ctx context.Context, text string) error {
	h.logger.Info("Clicking button.", zap.String("name", text))
	if err := h.page.GetByRole("button", text).First().Click(ctx); err != nil {
		return fmt.Errorf("failed to click button %q: %w", text, err)
	}
	return nil
}

// ClickLink clicks the link whose accessible name matches text.
func (h *Helper) ClickLink(ctx context.Context, text string) error {
	h.logger.Info("Clicking link.", zap.String("name", text))
	if err := h.page.GetByRole("link", text).First().Click(ctx); err != nil {
		return fmt.Errorf("failed to click link %q: %w", text, err)
	}
	return nil
}

func (h *Helper) GetText(ctx context.Context, locator string) (string, error) {
	el, err := h.element(ctx, locator)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read text of %s: %w", locator, err)
	}
	h.logger.Debug("Read text.", zap.String("locator", locator), zap.String("text", text))
	return text, nil
}

func (h *Helper) InputValue(ctx context.Context, locator string) (string, error) {
	el, err := h.element(ctx, locator)
	if err != nil {
		return "", err
	}
	return el.InputValue(ctx)
}

// GetAttribute returns the attribute value and whether the attribute is present.
func (h *Helper) GetAttribute(ctx context.Context, locator, name string) (string, bool, error) {
	el, err := h.element(ctx, locator)
	if err != nil {
		return "", false, err
	}
	return el.Attribute(ctx, name)
}

// IsVisible never fails; lookup errors read as not visible.
func (h *Helper) IsVisible(ctx context.Context, locator string) bool {
	el, err := h.element(ctx, locator)
	if err != nil {
		return false
	}
	visible, err := el.IsVisible(ctx)
	return err == nil && visible
}

// WaitForElement waits up to timeout for locator to be visible. A zero timeout
// uses the configured action timeout.
func (h *Helper) WaitForElement(ctx context.Context, locator string, timeout time.Duration) error {
	el, err := h.element(ctx, locator)
	if err != nil {
		return err
	}
	return el.WaitVisible(ctx, h.timeout(timeout))
}

func (h *Helper) VerifyElementVisible(ctx context.Context, locator string) error {
	if err := h.WaitForElement(ctx, locator, 0); err != nil {
		return fmt.Errorf("%w: %s is not visible: %v", ErrAssertionFailed, locator, err)
	}
	return nil
}

func (h *Helper) VerifyElementContainsText(ctx context.Context, locator, expected string) error {
	text, err := h.GetText(ctx, locator)
	if err != nil {
		return err
	}
	if !strings.Contains(text, expected) {
		return fmt.Errorf("%w: %s has text %q, want it to contain %q", ErrAssertionFailed, locator, text, expected)
	}
	return nil
}

// IsTextPresent reports whether some element containing text is visible right now.
func (h *Helper) IsTextPresent(ctx context.Context, text string) bool {
	visible, err := h.page.GetByText(text).First().IsVisible(ctx)
	if err != nil {
		h.logger.Debug("Text lookup failed.", zap.String("text", text), zap.Error(err))
		return false
	}
	return visible
}

// VerifyTextPresent waits up to the action timeout for text to be visible.
func (h *Helper) VerifyTextPresent(ctx context.Context, text string) error {
	h.logger.Info("Verifying text is present.", zap.String("text", text))
	if err := h.page.GetByText(text).First().WaitVisible(ctx, h.timeout(0)); err != nil {
		return fmt.Errorf("%w: text %q not visible on page: %v", ErrAssertionFailed, text, err)
	}
	return nil
}

// TableRows returns one locator per <tr> in the table found by tableLocator.
func (h *Helper) TableRows(ctx context.Context, tableLocator string) ([]browser.Locator, error) {
	table, err := h.element(ctx, tableLocator)
	if err != nil {
		return nil, err
	}
	return table.Locate("tr").All(ctx)
}

// IsValueInTable reports whether any row's text contains value.
func (h *Helper) IsValueInTable(ctx context.Context, tableLocator, value string) (bool, error) {
	rows, err := h.TableRows(ctx, tableLocator)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		text, err := row.Text(ctx)
		if err != nil {
			return false, err
		}
		if strings.Contains(text, value) {
			h.logger.Info("Found value in table.", zap.String("value", value))
			return true, nil
		}
	}
	h.logger.Info("Value not found in table.", zap.String("value", value))
	return false, nil
}

// StoreText saves the text of locator into store under key.
func (h *Helper) StoreText(ctx context.Context, store *variables.Store, key, locator string) error {
	text, err := h.GetText(ctx, locator)
	if err != nil {
		return err
	}
	store.Set(key, text)
	return nil
}

func (h *Helper) Title(ctx context.Context) (string, error) {
	return h.page.Title(ctx)
}

// Screenshot captures the full page to <screenshot_dir>/<name>.png and returns the path.
func (h *Helper) Screenshot(ctx context.Context, name string) (string, error) {
	dir, err := homedir.Expand(h.cfg.ScreenshotDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand screenshot directory: %w", err)
	}
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, name+".png")
	h.logger.Info("Taking screenshot.", zap.String("path", path))
	if err := h.page.Screenshot(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

func (h *Helper) timeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	if h.cfg.ActionTimeout > 0 {
		return h.cfg.ActionTimeout
	}
	return 5 * time.Second
}
