// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrElementNotFound is returned by element operations when the locator matches nothing
	// before the action timeout elapses.
	ErrElementNotFound = errors.New("element not found")
	// ErrNotVisible is returned when a matched element never becomes visible.
	ErrNotVisible = errors.New("element not visible")
)

// Page is one browser tab. Locate, GetByRole and GetByText are lazy: nothing is
// queried until an operation runs on the returned Locator.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Locate accepts CSS, XPath (leading "//"), "text=..." and ":has-text(...)" expressions.
	Locate(expression string) Locator
	// GetByRole matches elements by ARIA role. An empty name matches any name.
	GetByRole(role, name string) Locator
	// GetByText matches the innermost elements whose text contains text, case-insensitively.
	GetByText(text string) Locator
	Title(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string) error
}

// Locator is a lazy query for zero or more elements. Single-element operations act on the
// first match unless narrowed with Nth.
type Locator interface {
	String() string
	Count(ctx context.Context) (int, error)
	First() Locator
	Nth(index int) Locator
	// Locate scopes a further query to the elements matched by this locator.
	Locate(expression string) Locator
	All(ctx context.Context) ([]Locator, error)

	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Text(ctx context.Context) (string, error)
	InputValue(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	IsVisible(ctx context.Context) (bool, error)
	WaitVisible(ctx context.Context, timeout time.Duration) error
	Describe(ctx context.Context) (ElementInfo, error)
}

// ElementInfo identifies an element for diagnostics.
type ElementInfo struct {
	Tag       string `json:"tag"`
	ID        string `json:"id"`
	ClassName string `json:"className"`
}
