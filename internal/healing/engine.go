// File: internal/healing/engine.go
package healing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptpilot/internal/browser"
)

// ErrResolutionExhausted is matched by every *ResolutionError.
var ErrResolutionExhausted = errors.New("resolution exhausted")

// Outcome is the diagnostic result of one strategy in a failed resolution.
type Outcome string

const (
	OutcomeNotApplicable Outcome = "not_applicable"
	OutcomeNoMatch       Outcome = "no_acceptable_match"
)

// StrategyOutcome records what one strategy did during a failed resolution.
type StrategyOutcome struct {
	Strategy   string
	Outcome    Outcome
	Candidates int
}

// ResolutionError is returned when the primary reference and every strategy fail.
type ResolutionError struct {
	Description string
	Reference   string
	Outcomes    []StrategyOutcome
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("Failed to locate element: %q using selector: %q and all fallback strategies", e.Description, e.Reference)
}

func (e *ResolutionError) Is(target error) bool { return target == ErrResolutionExhausted }

// Record is one successful fallback substitution.
type Record struct {
	Original  string    `json:"original"`
	Healed    string    `json:"healed"`
	Strategy  string    `json:"strategy"`
	Candidate string    `json:"candidate"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine resolves possibly stale locators against a page, falling back through an
// ordered list of strategies. Each run owns one Engine and its healing log.
type Engine struct {
	page       browser.Page
	strategies []Strategy
	logger     *zap.Logger
	now        func() time.Time

	mu  sync.Mutex
	log []Record
}

// NewEngine builds an engine over page. A nil strategies slice selects DefaultStrategies
// with DefaultAcceptance.
func NewEngine(page browser.Page, strategies []Strategy, logger *zap.Logger) *Engine {
	if strategies == nil {
		strategies = DefaultStrategies(DefaultAcceptance())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		page:       page,
		strategies: strategies,
		logger:     logger.Named("healing"),
		now:        time.Now,
	}
}

// Strategies returns the configured strategy names in evaluation order.
func (e *Engine) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the first element matched by reference. When reference matches nothing
// (or its lookup fails) the strategies are tried in order and the first candidate whose
// match count is within the strategy's bounds is used and recorded in the healing log.
func (e *Engine) Resolve(ctx context.Context, reference, description string) (browser.Locator, error) {
	primary := e.page.Locate(reference)
	count, err := primary.Count(ctx)
	if err == nil && count > 0 {
		return primary.First(), nil
	}
	if err != nil {
		e.logger.Debug("Primary reference lookup failed.", zap.String("reference", reference), zap.Error(err))
	}

	e.logger.Info("Primary reference matched nothing; trying fallback strategies.",
		zap.String("reference", reference), zap.String("description", description))

	outcomes := make([]StrategyOutcome, 0, len(e.strategies))
	for _, strategy := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates := strategy.Candidates(reference, description)
		if len(candidates) == 0 {
			e.logger.Debug("Strategy not applicable.", zap.String("strategy", strategy.Name()))
			outcomes = append(outcomes, StrategyOutcome{Strategy: strategy.Name(), Outcome: OutcomeNotApplicable})
			continue
		}

		if loc, candidate, ok := e.tryCandidates(ctx, strategy, candidates); ok {
			e.record(ctx, reference, strategy.Name(), candidate, loc)
			return loc, nil
		}

		e.logger.Debug("Strategy found no acceptable match.",
			zap.String("strategy", strategy.Name()), zap.Int("candidates", len(candidates)))
		outcomes = append(outcomes, StrategyOutcome{Strategy: strategy.Name(), Outcome: OutcomeNoMatch, Candidates: len(candidates)})
	}

	return nil, &ResolutionError{Description: description, Reference: reference, Outcomes: outcomes}
}

func (e *Engine) tryCandidates(ctx context.Context, strategy Strategy, candidates []Candidate) (browser.Locator, Candidate, bool) {
	bounds := strategy.Bounds()
	for _, c := range candidates {
		loc := e.locate(c)
		count, err := loc.Count(ctx)
		if err != nil {
			e.logger.Debug("Candidate lookup failed.", zap.String("candidate", c.String()), zap.Error(err))
			continue
		}
		if bounds.Accepts(count) {
			return loc.First(), c, true
		}
		if count > 0 {
			e.logger.Debug("Candidate rejected by acceptance bounds.",
				zap.String("candidate", c.String()), zap.Int("count", count), zap.Stringer("bounds", bounds))
		}
	}
	return nil, Candidate{}, false
}

func (e *Engine) locate(c Candidate) browser.Locator {
	if c.Kind == CandidateRole {
		return e.page.GetByRole(c.Value, "")
	}
	return e.page.Locate(c.Value)
}

func (e *Engine) record(ctx context.Context, reference, strategy string, candidate Candidate, loc browser.Locator) {
	rec := Record{
		Original:  reference,
		Healed:    label(ctx, loc),
		Strategy:  strategy,
		Candidate: candidate.String(),
		Timestamp: e.now(),
	}

	e.mu.Lock()
	e.log = append(e.log, rec)
	e.mu.Unlock()

	e.logger.Info("Element healed.",
		zap.String("original", rec.Original),
		zap.String("healed", rec.Healed),
		zap.String("strategy", rec.Strategy),
		zap.String("candidate", rec.Candidate))
}

// label names an element as #id, .firstClass or its tag, or "unknown".
func label(ctx context.Context, loc browser.Locator) string {
	info, err := loc.Describe(ctx)
	if err != nil {
		return "unknown"
	}
	if info.ID != "" {
		return "#" + info.ID
	}
	if classes := strings.Fields(info.ClassName); len(classes) > 0 {
		return "." + classes[0]
	}
	if info.Tag != "" {
		return info.Tag
	}
	return "unknown"
}

// Log returns a copy of the healing log in the order substitutions happened.
func (e *Engine) Log() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Record(nil), e.log...)
}

func (e *Engine) ClearLog() {
	e.mu.Lock()
	e.log = nil
	e.mu.Unlock()
}

// LogSummary writes the healing log to the engine's logger.
func (e *Engine) LogSummary() {
	records := e.Log()
	if len(records) == 0 {
		e.logger.Info("No elements were healed.")
		return
	}
	e.logger.Info("Healing summary.", zap.Int("healed", len(records)))
	for i, r := range records {
		e.logger.Info("Healed element.",
			zap.Int("index", i+1),
			zap.String("original", r.Original),
			zap.String("healed", r.Healed),
			zap.String("strategy", r.Strategy),
			zap.Time("timestamp", r.Timestamp))
	}
}
