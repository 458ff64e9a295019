// internal/reporting/report.go
package reporting

import (
	"time"

	"github.com/xkilldash9x/promptpilot/internal/executor"
	"github.com/xkilldash9x/promptpilot/internal/healing"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// RunReport describes one isolated execution of a prompt file.
type RunReport struct {
	RunID          string                `json:"run_id"`
	Prompt         string                `json:"prompt"`
	Environment    string                `json:"environment"`
	HealingEnabled bool                  `json:"healing_enabled"`
	StartedAt      time.Time             `json:"started_at"`
	Duration       time.Duration         `json:"duration"`
	Status         Status                `json:"status"`
	Steps          []executor.StepResult `json:"steps"`
	// Variables is the store snapshot taken when the run ended.
	Variables map[string]any   `json:"variables"`
	Healing   []healing.Record `json:"healing"`
	Error     string             `json:"error,omitempty"`
	ErrorCode executor.ErrorCode `json:"error_code,omitempty"`
	// Screenshot is the failure screenshot path, if one was taken.
	Screenshot string `json:"screenshot,omitempty"`
}

func (r *RunReport) Passed() bool { return r.Status == StatusPassed }

// Counts tallies step outcomes.
func (r *RunReport) Counts() (passed, failed, skipped int) {
	for _, s := range r.Steps {
		switch s.Status {
		case executor.StatusPassed:
			passed++
		case executor.StatusFailed:
			failed++
		case executor.StatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}
