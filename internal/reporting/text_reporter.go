// internal/reporting/text_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/xkilldash9x/promptpilot/internal/executor"
	"github.com/xkilldash9x/promptpilot/internal/variables"
)

// TextReporter writes a human-readable summary of each run as it arrives.
type TextReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser
	passed int
	failed int
}

func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

var stepMarks = map[executor.StepStatus]string{
	executor.StatusPassed:  "ok  ",
	executor.StatusFailed:  "FAIL",
	executor.StatusSkipped: "skip",
}

func (r *TextReporter) Write(rep *RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := "PASS"
	if rep.Passed() {
		r.passed++
	} else {
		status = "FAIL"
		r.failed++
	}

	w := &errWriter{w: r.writer}
	w.printf("%s %s [env=%s healing=%t run=%s] %s\n",
		status, rep.Prompt, rep.Environment, rep.HealingEnabled, rep.RunID, rep.Duration.Round(time.Millisecond))
	for _, s := range rep.Steps {
		w.printf("  %s step %d: %s (%s) %s\n", stepMarks[s.Status], s.Ordinal, s.Description, s.Action, s.Duration.Round(time.Millisecond))
		if s.Error != "" {
			w.printf("       [%s] %s\n", s.Code, s.Error)
		}
	}
	for _, h := range rep.Healing {
		w.printf("  healed %s -> %s via %s\n", h.Original, h.Healed, h.Strategy)
	}
	for _, name := range sortedKeys(rep.Variables) {
		w.printf("  var %s = %s\n", name, variables.Format(rep.Variables[name]))
	}
	if rep.Screenshot != "" {
		w.printf("  screenshot: %s\n", rep.Screenshot)
	}
	return w.err
}

func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := &errWriter{w: r.writer}
	w.printf("%d passed, %d failed\n", r.passed, r.failed)
	if err := r.writer.Close(); err != nil && w.err == nil {
		return err
	}
	return w.err
}

// errWriter keeps the first write error so a report can be printed without checking each line.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
