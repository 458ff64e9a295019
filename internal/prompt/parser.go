// File: internal/prompt/parser.go
package prompt

import (
	"regexp"
	"strconv"
	"strings"
)

// LineKind tags the result of classifying one line.
type LineKind int

const (
	LineSkip LineKind = iota
	LineHeader
	LineDetail
)

// Line is the classification of a single source line.
type Line struct {
	Kind        LineKind
	Ordinal     int
	Description string
	// Text is the trimmed line for LineDetail.
	Text string
}

var (
	headingHeader  = regexp.MustCompile(`(?i)^#{1,3}\s*Step\s*(\d+)[:.]?\s*(.*)`)
	numberedHeader = regexp.MustCompile(`^(\d+)\.\s*(.*)`)
	directive      = regexp.MustCompile(`(?im)^#?\s*Self-Healing:\s*(YES|NO)`)
)

// ClassifyLine decides whether a line starts a step, belongs to a step body, or is ignored.
// Blank lines, heading markers and horizontal rules are ignored.
func ClassifyLine(raw string) Line {
	line := strings.TrimSpace(raw)
	if m := headingHeader.FindStringSubmatch(line); m != nil {
		return header(m)
	}
	if m := numberedHeader.FindStringSubmatch(line); m != nil {
		return header(m)
	}
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "---") {
		return Line{Kind: LineSkip}
	}
	return Line{Kind: LineDetail, Text: line}
}

func header(m []string) Line {
	ordinal, err := strconv.Atoi(m[1])
	if err != nil {
		// Digits too long for int; the ordinal is informational only.
		ordinal = 0
	}
	return Line{Kind: LineHeader, Ordinal: ordinal, Description: strings.TrimSpace(m[2])}
}

// Parse splits raw prompt text into steps in source order.
func Parse(text string) []Step {
	return ParseDocument(text).Steps
}

// ParseDocument parses raw prompt text, including the Self-Healing directive and any
// content that precedes the first step.
func ParseDocument(text string) *Document {
	doc := &Document{}
	if enabled, ok := SelfHealingDirective(text); ok {
		doc.SelfHealing = &enabled
	}

	var (
		current *Step
		body    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Details = ParseDetails(strings.Join(body, "\n"))
		doc.Steps = append(doc.Steps, *current)
	}

	for _, raw := range strings.Split(text, "\n") {
		line := ClassifyLine(raw)
		switch line.Kind {
		case LineHeader:
			flush()
			current = &Step{
				Ordinal:     line.Ordinal,
				Description: line.Description,
				Action:      DetermineAction(line.Description),
			}
			body = nil
		case LineDetail:
			if current == nil {
				doc.Preamble = append(doc.Preamble, line.Text)
				continue
			}
			body = append(body, line.Text)
		}
	}
	flush()
	return doc
}

// SelfHealingDirective reports the value of a "Self-Healing: YES|NO" line and whether one exists.
func SelfHealingDirective(text string) (enabled bool, found bool) {
	m := directive.FindStringSubmatch(text)
	if m == nil {
		return false, false
	}
	return strings.EqualFold(m[1], "YES"), true
}

// actionRules are evaluated in order against the lower-cased description; the first match wins.
var actionRules = []struct {
	all    []string
	any    []string
	action ActionKind
}{
	{all: []string{"login", "api"}, action: ActionAPILogin},
	{all: []string{"create", "api"}, action: ActionAPICreate},
	{all: []string{"retrieve", "api"}, action: ActionAPIGet},
	{all: []string{"delete", "api"}, action: ActionAPIDelete},
	{any: []string{"launch", "open", "navigate"}, action: ActionUINavigate},
	{all: []string{"login", "ui"}, action: ActionUILogin},
	{any: []string{"click"}, action: ActionUIClick},
	{any: []string{"verify", "validate", "check"}, action: ActionUIVerify},
}

// DetermineAction classifies a step description. It never returns an empty kind.
func DetermineAction(description string) ActionKind {
	lower := strings.ToLower(description)
	for _, rule := range actionRules {
		if rule.all != nil && containsAll(lower, rule.all) {
			return rule.action
		}
		if rule.any != nil && containsAny(lower, rule.any) {
			return rule.action
		}
	}
	return ActionUnknown
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Detail patterns. These are heuristics over free text and are kept deliberately narrow.
var (
	methodPattern   = regexp.MustCompile(`(?i)HTTP\s+Method:\s*(\w+)`)
	endpointPattern = regexp.MustCompile(`(?i)(?:Endpoint|URL):\s*([^\s]+)`)
	usernamePattern = regexp.MustCompile(`(?i)Username:\s*([^\s]+)`)
	passwordPattern = regexp.MustCompile(`(?i)Password:\s*([^\s]+)`)
	storePattern    = regexp.MustCompile("(?i)Store.*?(?:into\\s+variable|in\\s+a?\\s+(?:global\\s+)?variable\\s+called?)\\s*[→\\-]*\\s*[`\"]?(\\w+)[`\"]?")
	validatePattern = regexp.MustCompile("(?i)(?:Check|Verify|Validate|Ensure).*?[\"`']([^\"`']+)[\"`']")
)

// ParseDetails extracts every recognizable field from a step body. Fields are
// independent; a body may yield any combination of them.
func ParseDetails(body string) Details {
	d := Details{Fields: make(map[Field]string), Raw: body}

	if m := methodPattern.FindStringSubmatch(body); m != nil {
		d.Fields[FieldMethod] = strings.ToUpper(m[1])
	}
	if m := endpointPattern.FindStringSubmatch(body); m != nil {
		d.Fields[FieldEndpoint] = m[1]
	}
	if m := usernamePattern.FindStringSubmatch(body); m != nil {
		d.Fields[FieldUsername] = m[1]
	}
	if m := passwordPattern.FindStringSubmatch(body); m != nil {
		d.Fields[FieldPassword] = m[1]
	}
	if m := storePattern.FindStringSubmatch(body); m != nil {
		d.Fields[FieldStoreAs] = m[1]
	}
	if m := validatePattern.FindStringSubmatch(body); m != nil {
		d.Fields[FieldValidateText] = m[1]
	}
	return d
}
