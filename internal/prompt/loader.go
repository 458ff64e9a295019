// File: internal/prompt/loader.go
package prompt

import (
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
)

// LoadFile reads the raw prompt text at path. A leading "~" is expanded to the user's home directory.
func LoadFile(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand prompt path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file %q: %w", expanded, err)
	}
	return string(data), nil
}

// ParseFile loads and parses the prompt at path.
func ParseFile(path string) (*Document, error) {
	text, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDocument(text), nil
}
