// File: cmd/logs_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsCmd(t *testing.T) {
	resetForTest(t)
	logFile := filepath.Join(t.TempDir(), "promptpilot.log")
	require.NoError(t, os.WriteFile(logFile, []byte(`{"level":"INFO","msg":"Run passed."}`+"\n"+`{"level":"WARN","msg":"Unknown action."}`+"\n"), 0o644))
	cfg := writeTestConfig(t, testConfigOptions{logFile: logFile})

	out, err := executeCommand(t, "logs", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"level":"INFO","msg":"Run passed."}`, `{"level":"WARN","msg":"Unknown action."}`}, lines(out))
}

func TestLogsCmd_MissingFile(t *testing.T) {
	resetForTest(t)
	cfg := writeTestConfig(t, testConfigOptions{logFile: filepath.Join(t.TempDir(), "absent.log")})

	_, err := executeCommand(t, "logs", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestLogsCmd_NoLogFileConfigured(t *testing.T) {
	resetForTest(t)
	cfg := writeTestConfig(t, testConfigOptions{})

	_, err := executeCommand(t, "logs", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log file configured")
}
