// File: internal/executor/ui_steps.go
package executor

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/prompt"
	"github.com/xkilldash9x/promptpilot/internal/variables"
)

const (
	usernameInput = `input[name="username"]`
	passwordInput = `input[name="password"]`
	submitControl = `button[type="submit"]`
	resultsTable  = "table"
)

var (
	bareURL    = regexp.MustCompile(`https?://[^\s]+`)
	clickLabel = regexp.MustCompile("(?i)Click\\s+[\"`']([^\"`']+)[\"`']")
	boldToken  = regexp.MustCompile(`\*\*(\w+)\*\*`)
)

func (d *Driver) executeNavigate(ctx context.Context, step prompt.Step) (bool, error) {
	target, ok := step.Details.Endpoint()
	if !ok || target == "" {
		target = bareURL.FindString(step.Details.Raw)
	}
	if target == "" {
		return false, ErrMissingTarget
	}
	url, err := d.store.Substitute(target)
	if err != nil {
		return false, err
	}
	return false, d.ui.NavigateTo(ctx, url)
}

func (d *Driver) executeLogin(ctx context.Context, step prompt.Step) (bool, error) {
	username, uok := step.Details.Username()
	password, pok := step.Details.Password()
	if !uok || !pok || username == "" || password == "" {
		return false, ErrMissingCredentials
	}

	if err := d.ui.Fill(ctx, usernameInput, username); err != nil {
		return false, err
	}
	if err := d.ui.Fill(ctx, passwordInput, password); err != nil {
		return false, err
	}

	// Submission controls differ between sites; the first that works wins.
	attempts := []struct {
		name string
		run  func() error
	}{
		{"Submit button", func() error { return d.ui.ClickButton(ctx, "Submit") }},
		{"Log In button", func() error { return d.ui.ClickButton(ctx, "Log In") }},
		{"submit control", func() error { return d.ui.Click(ctx, submitControl) }},
	}
	var err error
	for _, attempt := range attempts {
		if err = attempt.run(); err == nil {
			return false, nil
		}
		d.logger.Debug("Login submission attempt failed.", zap.String("attempt", attempt.name), zap.Error(err))
	}
	return false, err
}

func (d *Driver) executeClick(ctx context.Context, step prompt.Step) (bool, error) {
	m := clickLabel.FindStringSubmatch(step.Details.Raw)
	if m == nil {
		d.logger.Warn("No quoted label to click, skipping.", zap.String("description", step.Description))
		return true, nil
	}
	label := m[1]
	linkErr := d.ui.ClickLink(ctx, label)
	if linkErr == nil {
		return false, nil
	}
	d.logger.Debug("No link with label, trying button.", zap.String("label", label), zap.Error(linkErr))
	return false, d.ui.ClickButton(ctx, label)
}

func (d *Driver) executeVerify(ctx context.Context, step prompt.Step) (bool, error) {
	if m := boldToken.FindStringSubmatch(step.Details.Raw); m != nil {
		return false, d.verifyVariable(ctx, m[1])
	}
	if text, ok := step.Details.ValidateText(); ok {
		return false, d.ui.VerifyTextPresent(ctx, text)
	}
	d.logger.Warn("Nothing to verify in step, skipping.", zap.String("description", step.Description))
	return true, nil
}

// verifyVariable asserts the stored value of name appears in the results table or anywhere on the page.
func (d *Driver) verifyVariable(ctx context.Context, name string) error {
	raw, ok := d.store.Get(name)
	if !ok {
		return &variables.UndefinedVariableError{Name: name}
	}
	value := variables.Format(raw)

	inTable, err := d.ui.IsValueInTable(ctx, resultsTable, value)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		d.logger.Debug("Table lookup failed, checking whole page.", zap.Error(err))
		inTable = false
	}
	if inTable || d.ui.IsTextPresent(ctx, value) {
		d.logger.Info("Verified variable on page.", zap.String("variable", name), zap.String("value", value))
		return nil
	}
	return fmt.Errorf("%w: value %q from variable %s not found on page", ErrAssertionFailed, value, name)
}

