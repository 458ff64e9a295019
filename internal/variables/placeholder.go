// File: internal/variables/placeholder.go
package variables

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
)

// ErrUndefinedVariable is matched by every *UndefinedVariableError.
var ErrUndefinedVariable = errors.New("undefined variable")

// UndefinedVariableError reports a {{name}} placeholder with no stored value.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("variable %q is not defined", e.Name)
}

func (e *UndefinedVariableError) Is(target error) bool {
	return target == ErrUndefinedVariable
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Placeholders returns the distinct placeholder names in text, in order of first appearance.
func Placeholders(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Substitute replaces every {{name}} in text with the formatted stored value.
// It fails on the first name that is not stored, or is stored as nil, and never
// substitutes an empty string for it.
func (s *Store) Substitute(text string) (string, error) {
	values := make(map[string]any)
	for _, name := range Placeholders(text) {
		value, ok := s.Get(name)
		if !ok || value == nil {
			return "", &UndefinedVariableError{Name: name}
		}
		values[name] = value
	}

	var b strings.Builder
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(text[last:loc[0]])
		b.WriteString(Format(values[text[loc[2]:loc[3]]]))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// Format renders a stored value as text. Whole floats print without exponent or
// trailing zeros, so a JSON id of 42 renders as "42". Structured values render as JSON.
func Format(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprint(v)
	case fmt.Stringer:
		return v.String()
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(encoded)
}
