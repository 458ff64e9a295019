// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/promptpilot/internal/browser"
)

// Element is a fake DOM element.
type Element struct {
	Tag      string
	ID       string
	Class    string
	Text     string
	Value    string
	Hidden   bool
	Attrs    map[string]string
	ClickErr error
	FillErr  error
}

// Page resolves locators from static tables keyed by locator string.
// Keys: selector expressions as given, "role=<role>" or "role=<role>[name=<name>]",
// "text=<text>" for GetByText, and "<parent> >> <child>" for scoped locators.
type Page struct {
	mu sync.Mutex

	Elements   map[string][]*Element
	LookupErrs map[string]error
	NavErr     error

	probes      []string
	navigations []string
	clicks      []string
	fills       map[string]string
	screenshots []string
	title       string
}

var _ browser.Page = (*Page)(nil)

func NewPage() *Page {
	return &Page{
		Elements:   make(map[string][]*Element),
		LookupErrs: make(map[string]error),
		fills:      make(map[string]string),
	}
}

// Add registers elements for key and returns the page for chaining.
func (p *Page) Add(key string, els ...*Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Elements[key] = append(p.Elements[key], els...)
	return p
}

// Probes lists every key whose count was queried, in order.
func (p *Page) Probes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.probes...)
}

func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *Page) Fills() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.fills))
	for k, v := range p.fills {
		out[k] = v
	}
	return out
}

func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	return p.NavErr
}

func (p *Page) Locate(expression string) browser.Locator {
	return &Locator{page: p, key: expression, index: -1}
}

func (p *Page) GetByRole(role, name string) browser.Locator {
	key := "role=" + role
	if name != "" {
		key = fmt.Sprintf("role=%s[name=%s]", role, name)
	}
	return &Locator{page: p, key: key, index: -1}
}

func (p *Page) GetByText(text string) browser.Locator {
	return &Locator{page: p, key: "text=" + text, index: -1}
}

func (p *Page) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots = append(p.screenshots, path)
	return nil
}

// Locator is the fake browser.Locator.
type Locator struct {
	page  *Page
	key   string
	index int
}

var _ browser.Locator = (*Locator)(nil)

func (l *Locator) String() string {
	if l.index >= 0 {
		return fmt.Sprintf("%s >> nth=%d", l.key, l.index)
	}
	return l.key
}

func (l *Locator) matches() ([]*Element, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	if err := l.page.LookupErrs[l.key]; err != nil {
		return nil, err
	}
	els := l.page.Elements[l.key]
	if l.index >= 0 {
		if l.index >= len(els) {
			return nil, nil
		}
		return els[l.index : l.index+1], nil
	}
	return els, nil
}

func (l *Locator) first() (*Element, error) {
	els, err := l.matches()
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, l.String())
	}
	return els[0], nil
}

func (l *Locator) Count(ctx context.Context) (int, error) {
	l.page.mu.Lock()
	l.page.probes = append(l.page.probes, l.key)
	l.page.mu.Unlock()

	els, err := l.matches()
	return len(els), err
}

func (l *Locator) First() browser.Locator { return l.Nth(0) }

func (l *Locator) Nth(index int) browser.Locator {
	return &Locator{page: l.page, key: l.key, index: index}
}

func (l *Locator) Locate(expression string) browser.Locator {
	return &Locator{page: l.page, key: l.key + " >> " + expression, index: -1}
}

func (l *Locator) All(ctx context.Context) ([]browser.Locator, error) {
	els, err := l.matches()
	if err != nil {
		return nil, err
	}
	out := make([]browser.Locator, len(els))
	for i := range els {
		out[i] = l.Nth(i)
	}
	return out, nil
}

func (l *Locator) Click(ctx context.Context) error {
	el, err := l.first()
	if err != nil {
		return err
	}
	if el.Hidden {
		return fmt.Errorf("%w: %s", browser.ErrNotVisible, l.String())
	}
	if el.ClickErr != nil {
		return el.ClickErr
	}
	l.page.mu.Lock()
	l.page.clicks = append(l.page.clicks, l.key)
	l.page.mu.Unlock()
	return nil
}

func (l *Locator) Fill(ctx context.Context, value string) error {
	el, err := l.first()
	if err != nil {
		return err
	}
	if el.FillErr != nil {
		return el.FillErr
	}
	l.page.mu.Lock()
	el.Value = value
	l.page.fills[l.key] = value
	l.page.mu.Unlock()
	return nil
}

func (l *Locator) Text(ctx context.Context) (string, error) {
	el, err := l.first()
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (l *Locator) InputValue(ctx context.Context) (string, error) {
	el, err := l.first()
	if err != nil {
		return "", err
	}
	return el.Value, nil
}

func (l *Locator) Attribute(ctx context.Context, name string) (string, bool, error) {
	el, err := l.first()
	if err != nil {
		return "", false, err
	}
	v, ok := el.Attrs[name]
	return v, ok, nil
}

func (l *Locator) IsVisible(ctx context.Context) (bool, error) {
	els, err := l.matches()
	if err != nil {
		return false, err
	}
	return len(els) > 0 && !els[0].Hidden, nil
}

func (l *Locator) WaitVisible(ctx context.Context, timeout time.Duration) error {
	el, err := l.first()
	if err != nil {
		return err
	}
	if el.Hidden {
		return fmt.Errorf("%w: %s", browser.ErrNotVisible, l.String())
	}
	return nil
}

func (l *Locator) Describe(ctx context.Context) (browser.ElementInfo, error) {
	el, err := l.first()
	if err != nil {
		return browser.ElementInfo{}, err
	}
	return browser.ElementInfo{Tag: strings.ToLower(el.Tag), ID: el.ID, ClassName: el.Class}, nil
}

// ErrBoom is a generic lookup failure for tests.
var ErrBoom = errors.New("boom")
