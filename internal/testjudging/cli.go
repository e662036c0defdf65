package testjudging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/crux/pkg/logger"
)

// SetupLogging sends log output to both stdout and a file. If logFile is
// empty, a timestamped filename is generated. The returned func closes the
// file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "test_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file.Close, nil
}

// ShowHelp prints usage information for the judging test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Crux Judging Test Tool
======================

Drives concurrent judging calls against one group of a running crux service,
then checks the served results against a local replay of the same calls and
the served ranking against a ranking computed from those results.

Usage:
  go run ./cmd/test-judging [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -group int
        Group receiving the calls (default 1)
  -calls int
        Number of judging calls to generate and submit (default 2000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -seed uint
        Generator seed, 0 picks one from the clock (default 0)
  -dup float
        Share of calls resubmitted with an earlier request id (default 0.05)
  -open
        Move a PENDING group to ONGOING first (default true)
  -tolerance float
        UNLIMITED_CONTEST tie tolerance of the service (default 0.001)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated calls (not written when empty)
  -log string
        Log file for test output (default: test_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run ./cmd/test-judging

  # Replay a previous run against group 12
  go run ./cmd/test-judging -group 12 -seed 42 -calls 10000 -workers 16
`)
}
