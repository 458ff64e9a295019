// File: internal/healing/strategy.go
package healing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/promptpilot/internal/config"
)

// CandidateKind says how a candidate is looked up on the page.
type CandidateKind int

const (
	// CandidateSelector is a locator expression passed to Page.Locate.
	CandidateSelector CandidateKind = iota
	// CandidateRole is an ARIA role passed to Page.GetByRole with no name.
	CandidateRole
)

// Candidate is one alternative locator proposed by a Strategy.
type Candidate struct {
	Kind  CandidateKind
	Value string
}

func (c Candidate) String() string {
	if c.Kind == CandidateRole {
		return "role=" + c.Value
	}
	return c.Value
}

func selector(v string) Candidate { return Candidate{Kind: CandidateSelector, Value: v} }

// Bounds is the inclusive range of match counts a strategy accepts. Max 0 means unbounded.
type Bounds struct {
	Min int
	Max int
}

// Accepts reports whether count lies within the bounds.
func (b Bounds) Accepts(count int) bool {
	if count < b.Min {
		return false
	}
	return b.Max == 0 || count <= b.Max
}

func (b Bounds) String() string {
	if b.Max == 0 {
		return fmt.Sprintf("[%d, inf)", b.Min)
	}
	return fmt.Sprintf("[%d, %d]", b.Min, b.Max)
}

// Strategy proposes alternative locators for a reference that matched nothing.
// Implementations are stateless. A nil or empty result means the strategy does
// not apply to this reference and description.
type Strategy interface {
	Name() string
	Candidates(reference, description string) []Candidate
	Bounds() Bounds
}

// Strategy names, in default priority order.
const (
	StrategyStructural       = "structural-variation"
	StrategyText             = "text-matching"
	StrategyRole             = "role-matching"
	StrategyPartialAttribute = "partial-attribute"
	StrategyLoosening        = "structural-loosening"
)

// AcceptanceConfig holds the per-strategy acceptance bounds.
type AcceptanceConfig struct {
	Structural       Bounds
	Text             Bounds
	Role             Bounds
	PartialAttribute Bounds
	Loosening        Bounds
}

// DefaultAcceptance accepts any non-empty result for the first three strategies and caps
// the broad ones at 5 and 10 matches.
func DefaultAcceptance() AcceptanceConfig {
	return AcceptanceConfig{
		Structural:       Bounds{Min: 1},
		Text:             Bounds{Min: 1},
		Role:             Bounds{Min: 1},
		PartialAttribute: Bounds{Min: 1, Max: 5},
		Loosening:        Bounds{Min: 1, Max: 10},
	}
}

// AcceptanceFromConfig applies the configured ceilings to the default bounds.
func AcceptanceFromConfig(cfg config.HealingConfig) AcceptanceConfig {
	a := DefaultAcceptance()
	if cfg.PartialAttributeMax > 0 {
		a.PartialAttribute.Max = cfg.PartialAttributeMax
	}
	if cfg.LooseningMax > 0 {
		a.Loosening.Max = cfg.LooseningMax
	}
	return a
}

// DefaultStrategies returns the five strategies in fixed priority order.
func DefaultStrategies(acceptance AcceptanceConfig) []Strategy {
	return []Strategy{
		structuralVariation{bounds: acceptance.Structural},
		textMatching{bounds: acceptance.Text},
		roleMatching{bounds: acceptance.Role},
		partialAttribute{bounds: acceptance.PartialAttribute},
		structuralLoosening{bounds: acceptance.Loosening},
	}
}

// dedupe drops repeated candidates, keeping first occurrences in order.
func dedupe(in []Candidate) []Candidate {
	seen := make(map[Candidate]bool, len(in))
	out := in[:0]
	for _, c := range in {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// -- Structural variation --

var (
	idFragment    = regexp.MustCompile(`#([\w-]+)`)
	classFragment = regexp.MustCompile(`\.([\w-]+)`)
	tagFragment   = regexp.MustCompile(`^(\w+)`)
)

type structuralVariation struct{ bounds Bounds }

func (structuralVariation) Name() string    { return StrategyStructural }
func (s structuralVariation) Bounds() Bounds { return s.bounds }

func (structuralVariation) Candidates(reference, _ string) []Candidate {
	var out []Candidate
	id := idFragment.FindStringSubmatch(reference)
	class := classFragment.FindStringSubmatch(reference)
	tag := tagFragment.FindStringSubmatch(reference)

	if id != nil {
		out = append(out,
			selector("#"+id[1]),
			selector(fmt.Sprintf(`[id="%s"]`, id[1])),
			selector(fmt.Sprintf(`[id*="%s"]`, id[1])),
		)
	}
	if class != nil {
		out = append(out,
			selector("."+class[1]),
			selector(fmt.Sprintf(`[class*="%s"]`, class[1])),
		)
	}
	if tag != nil {
		if id != nil {
			out = append(out, selector(tag[1]+"#"+id[1]))
		}
		if class != nil {
			out = append(out, selector(tag[1]+"."+class[1]))
		}
	}
	return dedupe(out)
}

// -- Text matching --

var roleWords = regexp.MustCompile(`(?i)element|button|link|field|input`)

type textMatching struct{ bounds Bounds }

func (textMatching) Name() string    { return StrategyText }
func (t textMatching) Bounds() Bounds { return t.bounds }

func (textMatching) Candidates(_, description string) []Candidate {
	texts := []string{description, strings.TrimSpace(roleWords.ReplaceAllString(description, ""))}

	var out []Candidate
	for _, text := range texts {
		if len(text) < 2 {
			continue
		}
		out = append(out,
			selector("text="+text),
			selector(fmt.Sprintf(`text="%s"`, text)),
			selector(fmt.Sprintf(`:has-text("%s")`, text)),
			selector(fmt.Sprintf(`button:has-text("%s")`, text)),
			selector(fmt.Sprintf(`a:has-text("%s")`, text)),
			selector(fmt.Sprintf(`[aria-label="%s"]`, text)),
			selector(fmt.Sprintf(`[title="%s"]`, text)),
			selector(fmt.Sprintf(`[placeholder="%s"]`, text)),
		)
	}
	return dedupe(out)
}

// -- Role matching --

// roleKeywords maps description keywords to ARIA roles, checked in this order.
var roleKeywords = []struct {
	keyword string
	role    string
}{
	{"button", "button"},
	{"link", "link"},
	{"input", "textbox"},
	{"checkbox", "checkbox"},
	{"radio", "radio"},
	{"select", "combobox"},
	{"heading", "heading"},
}

type roleMatching struct{ bounds Bounds }

func (roleMatching) Name() string    { return StrategyRole }
func (r roleMatching) Bounds() Bounds { return r.bounds }

func (roleMatching) Candidates(_, description string) []Candidate {
	lower := strings.ToLower(description)
	var out []Candidate
	for _, rk := range roleKeywords {
		if strings.Contains(lower, rk.keyword) {
			out = append(out, Candidate{Kind: CandidateRole, Value: rk.role})
		}
	}
	return out
}

// -- Partial attribute matching --

var (
	attrEquality = regexp.MustCompile(`\[(\w+)="([^"]+)"\]`)
	nameFragment = regexp.MustCompile(`name="([^"]+)"`)
	typeFragment = regexp.MustCompile(`type="([^"]+)"`)
)

type partialAttribute struct{ bounds Bounds }

func (partialAttribute) Name() string    { return StrategyPartialAttribute }
func (p partialAttribute) Bounds() Bounds { return p.bounds }

func (partialAttribute) Candidates(reference, _ string) []Candidate {
	var out []Candidate
	if m := attrEquality.FindStringSubmatch(reference); m != nil {
		out = append(out,
			selector(fmt.Sprintf(`[%s*="%s"]`, m[1], m[2])),
			selector(fmt.Sprintf(`[%s^="%s"]`, m[1], m[2])),
		)
	}
	if m := nameFragment.FindStringSubmatch(reference); m != nil {
		out = append(out, selector(fmt.Sprintf(`[name*="%s"]`, m[1])))
	}
	if m := typeFragment.FindStringSubmatch(reference); m != nil {
		out = append(out, selector(fmt.Sprintf(`[type="%s"]`, m[1])))
	}
	return dedupe(out)
}

// -- Structural loosening --

type structuralLoosening struct{ bounds Bounds }

func (structuralLoosening) Name() string    { return StrategyLoosening }
func (s structuralLoosening) Bounds() Bounds { return s.bounds }

func (structuralLoosening) Candidates(reference, _ string) []Candidate {
	raw := []string{
		strings.ReplaceAll(reference, ">", " "),
		strings.TrimSpace(strings.Split(reference, ">")[0]),
		strings.TrimSpace(strings.Split(reference, " ")[0]),
	}
	var out []Candidate
	for _, c := range raw {
		if c != "" && c != reference {
			out = append(out, selector(c))
		}
	}
	return dedupe(out)
}
