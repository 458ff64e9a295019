// File: internal/prompt/types.go
package prompt

// ActionKind classifies what a step does.
type ActionKind string

const (
	ActionAPILogin  ActionKind = "API_LOGIN"
	ActionAPIGet    ActionKind = "API_GET"
	ActionAPICreate ActionKind = "API_CREATE"
	// ActionAPIPost is dispatchable but never produced by classification.
	ActionAPIPost    ActionKind = "API_POST"
	ActionAPIDelete  ActionKind = "API_DELETE"
	ActionUINavigate ActionKind = "UI_NAVIGATE"
	ActionUILogin    ActionKind = "UI_LOGIN"
	ActionUIClick    ActionKind = "UI_CLICK"
	ActionUIVerify   ActionKind = "UI_VERIFY"
	ActionUnknown    ActionKind = "UNKNOWN"
)

// IsUI reports whether the action drives the browser.
func (a ActionKind) IsUI() bool {
	switch a {
	case ActionUINavigate, ActionUILogin, ActionUIClick, ActionUIVerify:
		return true
	}
	return false
}

// Field names an optional extracted detail.
type Field string

const (
	FieldMethod       Field = "method"
	FieldEndpoint     Field = "endpoint"
	FieldUsername     Field = "username"
	FieldPassword     Field = "password"
	FieldStoreAs      Field = "storeAs"
	FieldValidateText Field = "validateText"
)

// Details holds the fields extracted from a step's body. A missing key means the
// field was not specified; Raw always carries the full body.
type Details struct {
	Fields map[Field]string `json:"fields"`
	Raw    string           `json:"raw"`
}

func (d Details) Get(f Field) (string, bool) {
	v, ok := d.Fields[f]
	return v, ok
}

func (d Details) Method() (string, bool)       { return d.Get(FieldMethod) }
func (d Details) Endpoint() (string, bool)     { return d.Get(FieldEndpoint) }
func (d Details) Username() (string, bool)     { return d.Get(FieldUsername) }
func (d Details) Password() (string, bool)     { return d.Get(FieldPassword) }
func (d Details) StoreAs() (string, bool)      { return d.Get(FieldStoreAs) }
func (d Details) ValidateText() (string, bool) { return d.Get(FieldValidateText) }

// Step is one parsed unit of a prompt. Ordinal comes from the source text and is
// informational; execution follows parse order.
type Step struct {
	Ordinal     int        `json:"ordinal"`
	Description string     `json:"description"`
	Action      ActionKind `json:"action"`
	Details     Details    `json:"details"`
}

// Document is a parsed prompt file.
type Document struct {
	Steps []Step `json:"steps"`
	// SelfHealing is the value of the Self-Healing directive, nil when absent.
	SelfHealing *bool `json:"selfHealing,omitempty"`
	// Preamble holds the content lines that appeared before the first step header.
	Preamble []string `json:"preamble,omitempty"`
}
