// File: internal/executor/results.go
package executor

import (
	"time"

	"github.com/xkilldash9x/promptpilot/internal/prompt"
)

// StepStatus is the outcome of one step.
type StepStatus string

const (
	StatusPassed  StepStatus = "passed"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// StepResult records what happened to one executed step.
type StepResult struct {
	Ordinal     int               `json:"ordinal"`
	Description string            `json:"description"`
	Action      prompt.ActionKind `json:"action"`
	Status      StepStatus        `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration"`
	Code        ErrorCode         `json:"code,omitempty"`
	Error       string            `json:"error,omitempty"`
}
