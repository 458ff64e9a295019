// internal/reporting/json_reporter.go
package reporting

import (
	"errors"
	"io"

	json "github.com/json-iterator/go"
)

// ToolName identifies the producer in machine-readable reports.
const ToolName = "promptpilot"

type jsonDocument struct {
	Tool    string       `json:"tool"`
	Version string       `json:"version"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Runs    []*RunReport `json:"runs"`
}

// JSONReporter writes every run as a single JSON document on Close.
type JSONReporter struct {
	collector
	writer      io.WriteCloser
	toolVersion string
}

func NewJSONReporter(writer io.WriteCloser, toolVersion string) *JSONReporter {
	return &JSONReporter{writer: writer, toolVersion: toolVersion}
}

func (r *JSONReporter) Write(report *RunReport) error { return r.add(report) }

func (r *JSONReporter) Close() error {
	reports, ok := r.drain()
	if !ok {
		return nil
	}
	doc := jsonDocument{Tool: ToolName, Version: r.toolVersion, Runs: reports}
	if doc.Runs == nil {
		doc.Runs = []*RunReport{}
	}
	for _, rep := range reports {
		if rep.Passed() {
			doc.Passed++
		} else {
			doc.Failed++
		}
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	encErr := enc.Encode(doc)
	return errors.Join(encErr, r.writer.Close())
}
