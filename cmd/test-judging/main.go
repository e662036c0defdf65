package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/crux/internal/testjudging"
)

// Default configuration constants.
const (
	defaultCalls       = 2000
	defaultGroupID     = 1
	defaultDupRate     = 0.05
	defaultTolerance   = 1e-3
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		groupID    = flag.Int64("group", defaultGroupID, "Group receiving the calls")
		calls      = flag.Int("calls", defaultCalls, "Number of judging calls to generate and submit")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		seed       = flag.Uint64("seed", 0, "Generator seed, 0 picks one from the clock")
		dupRate    = flag.Float64("dup", defaultDupRate, "Share of calls resubmitted with an earlier request id")
		open       = flag.Bool("open", true, "Move a PENDING group to ONGOING first")
		tolerance  = flag.Float64("tolerance", defaultTolerance, "UNLIMITED_CONTEST tie tolerance of the service")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for generated calls")
		logFile    = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testjudging.ShowHelp()
		return
	}

	closeLog, err := testjudging.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testjudging.Config{
		BaseURL:    *baseURL,
		GroupID:    *groupID,
		Calls:      *calls,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		DupRate:    *dupRate,
		Open:       *open,
		Tolerance:  *tolerance,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := testjudging.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		_ = closeLog()
		os.Exit(1)
	}
}
