// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mitchellh/go-homedir"
)

// Reporter writes run reports to an output.
type Reporter interface {
	// Write records a single run.
	Write(report *RunReport) error
	// Close finalizes the report and closes any underlying file.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("text", "json" or "junit") writing to outputPath.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath, toolVersion string) (Reporter, error) {
	switch format {
	case "text", "json", "junit":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	writer, err := openOutput(outputPath)
	if err != nil {
		return nil, err
	}

	switch format {
	case "json":
		return NewJSONReporter(writer, toolVersion), nil
	case "junit":
		return NewJUnitReporter(writer), nil
	default:
		return NewTextReporter(writer), nil
	}
}

func openOutput(outputPath string) (io.WriteCloser, error) {
	if outputPath == "" || outputPath == "stdout" {
		return &nopWriteCloser{os.Stdout}, nil
	}
	path, err := homedir.Expand(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand output path %s: %w", outputPath, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, nil
}

// collector buffers reports for formats that can only be written as a whole document.
type collector struct {
	mu      sync.Mutex
	reports []*RunReport
	closed  bool
}

func (c *collector) add(report *RunReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("reporter is closed")
	}
	c.reports = append(c.reports, report)
	return nil
}

// drain marks the collector closed and returns what it holds. ok is false on a second call.
func (c *collector) drain() (reports []*RunReport, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	c.closed = true
	return c.reports, true
}
