// internal/reporting/junit_reporter.go
package reporting

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/promptpilot/internal/executor"
	"github.com/xkilldash9x/promptpilot/internal/variables"
)

// JUnitReporter writes runs as JUnit XML testsuites on Close. Each prompt is a
// testsuite and each step a testcase.
type JUnitReporter struct {
	collector
	writer io.WriteCloser
}

func NewJUnitReporter(writer io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{writer: writer}
}

func (r *JUnitReporter) Write(report *RunReport) error { return r.add(report) }

func (r *JUnitReporter) Close() error {
	reports, ok := r.drain()
	if !ok {
		return nil
	}
	doc := buildJUnit(reports)
	doc.Indent(2)
	_, writeErr := doc.WriteTo(r.writer)
	return errors.Join(writeErr, r.writer.Close())
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func buildJUnit(reports []*RunReport) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", ToolName)

	var tests, failures int
	var total time.Duration
	for _, rep := range reports {
		suite := root.CreateElement("testsuite")
		_, failed, skipped := rep.Counts()
		suite.CreateAttr("name", rep.Prompt)
		suite.CreateAttr("tests", strconv.Itoa(len(rep.Steps)))
		suite.CreateAttr("failures", strconv.Itoa(failed))
		suite.CreateAttr("skipped", strconv.Itoa(skipped))
		suite.CreateAttr("time", seconds(rep.Duration))
		suite.CreateAttr("timestamp", rep.StartedAt.UTC().Format(time.RFC3339))

		props := suite.CreateElement("properties")
		addProperty(props, "run_id", rep.RunID)
		addProperty(props, "environment", rep.Environment)
		addProperty(props, "healing_enabled", strconv.FormatBool(rep.HealingEnabled))
		if rep.Screenshot != "" {
			addProperty(props, "screenshot", rep.Screenshot)
		}

		for _, step := range rep.Steps {
			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", fmt.Sprintf("Step %d: %s", step.Ordinal, step.Description))
			tc.CreateAttr("classname", rep.Prompt)
			tc.CreateAttr("time", seconds(step.Duration))
			switch step.Status {
			case executor.StatusFailed:
				f := tc.CreateElement("failure")
				f.CreateAttr("type", string(step.Code))
				f.CreateAttr("message", step.Error)
			case executor.StatusSkipped:
				tc.CreateElement("skipped")
			}
		}

		if out := systemOut(rep); out != "" {
			suite.CreateElement("system-out").SetText(out)
		}

		tests += len(rep.Steps)
		failures += failed
		total += rep.Duration
	}

	root.CreateAttr("tests", strconv.Itoa(tests))
	root.CreateAttr("failures", strconv.Itoa(failures))
	root.CreateAttr("time", seconds(total))
	return doc
}

func addProperty(props *etree.Element, name, value string) {
	p := props.CreateElement("property")
	p.CreateAttr("name", name)
	p.CreateAttr("value", value)
}

// systemOut lists healed locators and final variables.
func systemOut(rep *RunReport) string {
	var b strings.Builder
	for _, h := range rep.Healing {
		fmt.Fprintf(&b, "healed %s -> %s (%s)\n", h.Original, h.Healed, h.Strategy)
	}
	for _, name := range sortedKeys(rep.Variables) {
		fmt.Fprintf(&b, "%s = %s\n", name, variables.Format(rep.Variables[name]))
	}
	return b.String()
}
