// File: internal/api/xml.go
package api

import (
	"regexp"
	"strings"
)

// ExtractXMLValue returns the trimmed text of the first <tag>...</tag> element in body.
// Tag names match case-insensitively. Nested markup inside the element is not supported.
func ExtractXMLValue(body, tag string) (string, bool) {
	if tag == "" {
		return "", false
	}
	q := regexp.QuoteMeta(tag)
	re, err := regexp.Compile(`(?i)<` + q + `>\s*([^<]+)\s*</` + q + `>`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// LooksLikeXML reports whether a text body should be searched for tagged fields.
func LooksLikeXML(body string) bool {
	return strings.Contains(body, "<")
}
