// internal/browser/locator.go
package browser

import (
	"context"
	"fmt"
	"time"
)

type locator struct {
	session *Session
	spec    querySpec
}

var _ Locator = (*locator)(nil)

func (l *locator) String() string { return l.spec.String() }

func (l *locator) First() Locator { return l.Nth(0) }

func (l *locator) Nth(index int) Locator {
	return &locator{session: l.session, spec: l.spec.withIndex(index)}
}

func (l *locator) Locate(expression string) Locator {
	return &locator{session: l.session, spec: l.spec.with(queryStep{Kind: stepSelector, Value: expression, Index: -1})}
}

// eval runs an operation body against the current matches within the action timeout.
func (l *locator) eval(ctx context.Context, body string, res interface{}) error {
	opCtx, cancel := l.session.opContext(ctx, l.session.cfg.ActionTimeout)
	defer cancel()
	if err := l.session.evaluateFunc(opCtx, buildScript(l.spec, body), res); err != nil {
		return fmt.Errorf("query %q failed: %w", l.String(), err)
	}
	return nil
}

func (l *locator) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.eval(ctx, scriptCount, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (l *locator) All(ctx context.Context) ([]Locator, error) {
	n, err := l.Count(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Locator, n)
	for i := range out {
		out[i] = l.Nth(i)
	}
	return out, nil
}

func (l *locator) IsVisible(ctx context.Context) (bool, error) {
	var visible bool
	if err := l.eval(ctx, scriptVisible, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

// waitFor polls until the locator matches (and, with visible, the first match is visible)
// or the timeout elapses.
func (l *locator) waitFor(ctx context.Context, timeout time.Duration, visible bool) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(l.session.pollInterval)
	defer ticker.Stop()

	for {
		n, err := l.Count(ctx)
		found := err == nil && n > 0
		if found && !visible {
			return nil
		}
		if found {
			if ok, verr := l.IsVisible(ctx); verr == nil && ok {
				return nil
			}
		}
		if time.Now().After(deadline) {
			switch {
			case err != nil:
				return err
			case !found:
				return fmt.Errorf("%w: %s", ErrElementNotFound, l.String())
			default:
				return fmt.Errorf("%w: %s", ErrNotVisible, l.String())
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *locator) WaitVisible(ctx context.Context, timeout time.Duration) error {
	return l.waitFor(ctx, timeout, true)
}

func (l *locator) Click(ctx context.Context) error {
	if err := l.waitFor(ctx, l.session.cfg.ActionTimeout, true); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	var ok *bool
	if err := l.eval(ctx, scriptClick, &ok); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	if ok == nil {
		return fmt.Errorf("click failed: %w: %s", ErrElementNotFound, l.String())
	}
	return l.session.pause(ctx)
}

func (l *locator) Fill(ctx context.Context, value string) error {
	if err := l.waitFor(ctx, l.session.cfg.ActionTimeout, true); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	var ok *bool
	if err := l.eval(ctx, fillScript(value), &ok); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	if ok == nil {
		return fmt.Errorf("fill failed: %w: %s", ErrElementNotFound, l.String())
	}
	return l.session.pause(ctx)
}

// readString waits for a match and evaluates a body returning a string or null.
func (l *locator) readString(ctx context.Context, body string) (string, error) {
	if err := l.waitFor(ctx, l.session.cfg.ActionTimeout, false); err != nil {
		return "", err
	}
	var out *string
	if err := l.eval(ctx, body, &out); err != nil {
		return "", err
	}
	if out == nil {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, l.String())
	}
	return *out, nil
}

func (l *locator) Text(ctx context.Context) (string, error) {
	return l.readString(ctx, scriptText)
}

func (l *locator) InputValue(ctx context.Context) (string, error) {
	return l.readString(ctx, scriptInputValue)
}

func (l *locator) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := l.waitFor(ctx, l.session.cfg.ActionTimeout, false); err != nil {
		return "", false, err
	}
	var out *struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := l.eval(ctx, attributeScript(name), &out); err != nil {
		return "", false, err
	}
	if out == nil {
		return "", false, fmt.Errorf("%w: %s", ErrElementNotFound, l.String())
	}
	return out.Value, out.Present, nil
}

// Describe reports the first match without waiting.
func (l *locator) Describe(ctx context.Context) (ElementInfo, error) {
	var info *ElementInfo
	if err := l.eval(ctx, scriptDescribe, &info); err != nil {
		return ElementInfo{}, err
	}
	if info == nil {
		return ElementInfo{}, fmt.Errorf("%w: %s", ErrElementNotFound, l.String())
	}
	return *info, nil
}
