// File: internal/healing/engine_test.go
package healing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	bt "github.com/xkilldash9x/promptpilot/internal/browser/browsertest"
)

func newTestEngine(t *testing.T, page *bt.Page) *Engine {
	t.Helper()
	e := NewEngine(page, nil, zaptest.NewLogger(t))
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func elements(n int, tmpl bt.Element) []*bt.Element {
	out := make([]*bt.Element, n)
	for i := range out {
		el := tmpl
		out[i] = &el
	}
	return out
}

func TestResolve_PrimaryMatch(t *testing.T) {
	page := bt.NewPage().Add("#submit", &bt.Element{Tag: "button", ID: "submit"}, &bt.Element{Tag: "button"})
	e := newTestEngine(t, page)

	loc, err := e.Resolve(context.Background(), "#submit", "Submit button")
	require.NoError(t, err)
	assert.Equal(t, "#submit >> nth=0", loc.String(), "the first primary match is returned")
	assert.Empty(t, e.Log(), "a primary match is not healing")
	assert.Equal(t, []string{"#submit"}, page.Probes(), "no fallback strategy is consulted")
}

func TestResolve_StructuralVariationHeals(t *testing.T) {
	page := bt.NewPage().Add(`[id*="submit"]`, &bt.Element{Tag: "button", ID: "submit-v2", Class: "btn primary"})
	e := newTestEngine(t, page)

	loc, err := e.Resolve(context.Background(), "#submit", "Submit button")
	require.NoError(t, err)
	assert.Equal(t, `[id*="submit"] >> nth=0`, loc.String())
	assert.Equal(t, []string{"#submit", "#submit", `[id="submit"]`, `[id*="submit"]`}, page.Probes())

	log := e.Log()
	require.Len(t, log, 1)
	assert.Equal(t, Record{
		Original:  "#submit",
		Healed:    "#submit-v2",
		Strategy:  StrategyStructural,
		Candidate: `[id*="submit"]`,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, log[0])
}

func TestResolve_PrimaryLookupErrorFallsBack(t *testing.T) {
	page := bt.NewPage().Add("text=Log In", &bt.Element{Tag: "input", Class: "button"})
	page.LookupErrs["input[[broken"] = bt.ErrBoom
	e := newTestEngine(t, page)

	_, err := e.Resolve(context.Background(), "input[[broken", "Log In")
	require.NoError(t, err)
	require.Len(t, e.Log(), 1)
	assert.Equal(t, ".button", e.Log()[0].Healed, "class label when there is no id")
	assert.Equal(t, StrategyText, e.Log()[0].Strategy)
}

func TestResolve_StrategyOrder(t *testing.T) {
	// Every strategy would succeed; only the earliest may be used.
	page := bt.NewPage().
		Add(`button:has-text("Submit")`, &bt.Element{Tag: "button"}).
		Add("role=button", &bt.Element{Tag: "button"}).
		Add(`[type*="submit"]`, &bt.Element{Tag: "input"}).
		Add("button", &bt.Element{Tag: "button"})
	e := newTestEngine(t, page)

	_, err := e.Resolve(context.Background(), `button[type="submit"]`, "Submit button")
	require.NoError(t, err)
	require.Len(t, e.Log(), 1)
	assert.Equal(t, StrategyText, e.Log()[0].Strategy)
	assert.Equal(t, "button", e.Log()[0].Healed, "tag label when there is no id or class")
	assert.NotContains(t, page.Probes(), "role=button", "later strategies never start")
}

func TestResolve_RoleStrategy(t *testing.T) {
	page := bt.NewPage().Add("role=checkbox", &bt.Element{Tag: "input", ID: "terms"})
	e := newTestEngine(t, page)

	// No CSS fragments to vary and no text on the page matches the description.
	loc, err := e.Resolve(context.Background(), "//input[@name='agree']", "checkbox")
	require.NoError(t, err)
	assert.Equal(t, "role=checkbox >> nth=0", loc.String())
	assert.Equal(t, "#terms", e.Log()[0].Healed)
	assert.Equal(t, StrategyRole, e.Log()[0].Strategy)
}

func TestResolve_PartialAttributeCeiling(t *testing.T) {
	tmpl := bt.Element{Tag: "input"}
	t.Run("more than five matches is too generic", func(t *testing.T) {
		page := bt.NewPage()
		page.Elements[`[name*="user"]`] = elements(6, tmpl)
		page.Elements[`[name^="user"]`] = elements(6, tmpl)
		e := newTestEngine(t, page)

		_, err := e.Resolve(context.Background(), `[name="user"]`, "zz")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrResolutionExhausted))
	})

	t.Run("five matches is accepted", func(t *testing.T) {
		page := bt.NewPage()
		page.Elements[`[name*="user"]`] = elements(6, tmpl)
		page.Elements[`[name^="user"]`] = elements(5, tmpl)
		e := newTestEngine(t, page)

		loc, err := e.Resolve(context.Background(), `[name="user"]`, "zz")
		require.NoError(t, err)
		assert.Equal(t, `[name^="user"] >> nth=0`, loc.String(), "first candidate within bounds wins")
		assert.Equal(t, StrategyPartialAttribute, e.Log()[0].Strategy)
	})
}

func TestResolve_LooseningCeiling(t *testing.T) {
	tmpl := bt.Element{Tag: "li"}
	t.Run("ten matches accepted", func(t *testing.T) {
		page := bt.NewPage()
		page.Elements["ul   li"] = elements(10, tmpl)
		e := newTestEngine(t, page)

		_, err := e.Resolve(context.Background(), "ul > li", "zz")
		require.NoError(t, err)
		assert.Equal(t, StrategyLoosening, e.Log()[0].Strategy)
	})

	t.Run("eleven matches rejected", func(t *testing.T) {
		page := bt.NewPage()
		page.Elements["ul   li"] = elements(11, tmpl)
		page.Elements["ul"] = elements(11, tmpl)
		e := newTestEngine(t, page)

		_, err := e.Resolve(context.Background(), "ul > li", "zz")
		assert.True(t, errors.Is(err, ErrResolutionExhausted))
	})
}

func TestResolve_Exhausted(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := NewEngine(bt.NewPage(), nil, zap.New(core))

	_, err := e.Resolve(context.Background(), "#gone", "Open New Account link")
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "#gone", resErr.Reference)
	assert.Equal(t, "Open New Account link", resErr.Description)
	assert.Equal(t, `Failed to locate element: "Open New Account link" using selector: "#gone" and all fallback strategies`, err.Error())

	assert.Equal(t, []StrategyOutcome{
		{Strategy: StrategyStructural, Outcome: OutcomeNoMatch, Candidates: 3},
		{Strategy: StrategyText, Outcome: OutcomeNoMatch, Candidates: 16},
		{Strategy: StrategyRole, Outcome: OutcomeNoMatch, Candidates: 1},
		{Strategy: StrategyPartialAttribute, Outcome: OutcomeNotApplicable},
		{Strategy: StrategyLoosening, Outcome: OutcomeNotApplicable},
	}, resErr.Outcomes)

	assert.Equal(t, 2, logs.FilterMessage("Strategy not applicable.").Len())
	assert.Empty(t, e.Log())
}

func TestResolve_CustomStrategies(t *testing.T) {
	page := bt.NewPage().Add("#b", &bt.Element{ID: "b"})
	strategies := []Strategy{fixedStrategy{name: "fixed", candidates: []string{"#a", "#b"}}}
	e := NewEngine(page, strategies, nil)

	loc, err := e.Resolve(context.Background(), "#missing", "whatever")
	require.NoError(t, err)
	assert.Equal(t, "#b >> nth=0", loc.String())
	assert.Equal(t, []string{"fixed"}, e.Strategies())
}

func TestResolve_ContextCancelled(t *testing.T) {
	e := newTestEngine(t, bt.NewPage())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Resolve(ctx, "#gone", "thing")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHealingLog(t *testing.T) {
	page := bt.NewPage().Add(`[id*="a"]`, &bt.Element{ID: "a1"})
	e := newTestEngine(t, page)

	for i := 0; i < 3; i++ {
		_, err := e.Resolve(context.Background(), "#a", fmt.Sprintf("thing %d", i))
		require.NoError(t, err)
	}
	log := e.Log()
	assert.Len(t, log, 3, "repeated substitutions are not deduplicated")

	log[0].Healed = "mutated"
	assert.Equal(t, "#a1", e.Log()[0].Healed, "readers get a copy")

	e.ClearLog()
	assert.Empty(t, e.Log())
}

func TestLogSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	page := bt.NewPage().Add(`[id*="a"]`, &bt.Element{ID: "a1"})
	e := NewEngine(page, nil, zap.New(core))

	e.LogSummary()
	assert.Equal(t, 1, logs.FilterMessage("No elements were healed.").Len())

	_, err := e.Resolve(context.Background(), "#a", "a")
	require.NoError(t, err)
	e.LogSummary()
	assert.Equal(t, 1, logs.FilterMessage("Healed element.").Len())
}

type fixedStrategy struct {
	name       string
	candidates []string
}

func (f fixedStrategy) Name() string   { return f.name }
func (f fixedStrategy) Bounds() Bounds { return Bounds{Min: 1} }
func (f fixedStrategy) Candidates(string, string) []Candidate {
	out := make([]Candidate, len(f.candidates))
	for i, c := range f.candidates {
		out[i] = selector(c)
	}
	return out
}
