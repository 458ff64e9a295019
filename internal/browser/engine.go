// internal/browser/engine.go
package browser

import (
	_ "embed"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

//go:embed selector_engine.js
var selectorEngineSource string

const (
	stepSelector = "selector"
	stepRole     = "role"
	stepText     = "text"
)

// queryStep is one link of a locator chain. Index < 0 keeps every match.
type queryStep struct {
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
	Role  string `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
	Index int    `json:"index"`
}

type querySpec struct {
	Steps []queryStep `json:"steps"`
}

func (q querySpec) with(step queryStep) querySpec {
	steps := make([]queryStep, len(q.Steps), len(q.Steps)+1)
	copy(steps, q.Steps)
	return querySpec{Steps: append(steps, step)}
}

// withIndex narrows the last step to a single match.
func (q querySpec) withIndex(index int) querySpec {
	steps := make([]queryStep, len(q.Steps))
	copy(steps, q.Steps)
	if len(steps) > 0 {
		steps[len(steps)-1].Index = index
	}
	return querySpec{Steps: steps}
}

func (q querySpec) String() string {
	parts := make([]string, 0, len(q.Steps))
	for _, s := range q.Steps {
		var part string
		switch s.Kind {
		case stepRole:
			if s.Name != "" {
				part = fmt.Sprintf("role=%s[name=%q]", s.Role, s.Name)
			} else {
				part = "role=" + s.Role
			}
		case stepText:
			part = "text=" + s.Value
		default:
			part = s.Value
		}
		if s.Index >= 0 {
			part = fmt.Sprintf("%s >> nth=%d", part, s.Index)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " >> ")
}

// jsonEncode renders v as a JavaScript literal.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// buildScript wraps body in an IIFE where `els` holds the elements matched by spec.
// The selector engine is installed on first use in each document.
func buildScript(spec querySpec, body string) string {
	return fmt.Sprintf(`(function() {
%s
const els = window.__promptpilot.resolve(%s);
%s
})()`, selectorEngineSource, jsonEncode(spec), body)
}

// Element operation bodies. Each acts on els[0] and returns null when nothing matched.
const (
	scriptCount    = `return els.length;`
	scriptDescribe = `const el = els[0];
if (!el) return null;
return {tag: el.tagName.toLowerCase(), id: el.id || '', className: typeof el.className === 'string' ? el.className : (el.getAttribute('class') || '')};`
	scriptVisible = `return els.length > 0 && window.__promptpilot.visible(els[0]);`
	scriptClick   = `const el = els[0];
if (!el) return null;
el.scrollIntoView({block: 'center', inline: 'center'});
el.click();
return true;`
	scriptText       = `return els[0] ? (els[0].textContent || '') : null;`
	scriptInputValue = `return els[0] ? ('value' in els[0] ? String(els[0].value) : '') : null;`
)

func fillScript(value string) string {
	return fmt.Sprintf(`const el = els[0];
if (!el) return null;
el.scrollIntoView({block: 'center'});
el.focus();
const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
  : el instanceof HTMLSelectElement ? HTMLSelectElement.prototype : HTMLInputElement.prototype;
const desc = Object.getOwnPropertyDescriptor(proto, 'value');
if (desc && desc.set) { desc.set.call(el, %s); } else { el.value = %s; }
el.dispatchEvent(new Event('input', {bubbles: true}));
el.dispatchEvent(new Event('change', {bubbles: true}));
return true;`, jsonEncode(value), jsonEncode(value))
}

func attributeScript(name string) string {
	return fmt.Sprintf(`const el = els[0];
if (!el) return null;
return {present: el.hasAttribute(%s), value: el.getAttribute(%s) || ''};`, jsonEncode(name), jsonEncode(name))
}
