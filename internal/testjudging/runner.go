package testjudging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

const (
	percentageMultiplier = 100
	progressInterval     = time.Second
)

// Run executes the complete judging test and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}
	if config.Seed == 0 {
		config.Seed = uint64(stats.StartTime.UnixNano())
	}
	log := logger.Get()

	log.Info(ctx, "starting crux judging test",
		logger.String("baseURL", config.BaseURL),
		logger.Int64("groupId", config.GroupID),
		logger.Int("calls", config.Calls),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Load the group and its round
	g, r, err := loadTarget(ctx, config, client)
	if err != nil {
		return stats, err
	}
	baseline, err := client.Results(ctx, g.ID)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch baseline results: %w", err)
	}

	// Step 3: Generate calls
	calls, err := generateCalls(ctx, config, g, r, stats)
	if err != nil {
		return stats, fmt.Errorf("call generation failed: %w", err)
	}

	// Step 4: Submit calls concurrently
	observed, err := submitCalls(ctx, config, client, g.ID, calls, stats)
	if err != nil {
		return stats, fmt.Errorf("call submission failed: %w", err)
	}

	// Step 5: Verify results and rankings
	verifyErr := verify(ctx, config, client, r, g, baseline, calls, observed, stats)

	// Step 6: Save calls to file
	if config.OutputFile != "" {
		if err := saveCallsToFile(ctx, config.OutputFile, calls); err != nil {
			log.Warn(ctx, "failed to save calls to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	log.Info(ctx, "test completed successfully")
	return stats, nil
}

// loadTarget fetches the group and its round, opening the group if asked.
func loadTarget(ctx context.Context, config *Config, client *HTTPClient) (model.Group, model.Round, error) {
	g, err := client.Group(ctx, config.GroupID)
	if err != nil {
		return model.Group{}, model.Round{}, fmt.Errorf("failed to fetch group %d: %w", config.GroupID, err)
	}
	if g.State == model.GroupPending && config.Open {
		if g, err = client.SetGroupState(ctx, g.ID, model.GroupOngoing); err != nil {
			return model.Group{}, model.Round{}, fmt.Errorf("failed to open group %d: %w", config.GroupID, err)
		}
		logger.Get().Info(ctx, "group opened", logger.Int64("groupId", g.ID))
	}
	if g.State != model.GroupOngoing {
		return model.Group{}, model.Round{}, fmt.Errorf("%w: group %d is %s", ErrGroupClosed, g.ID, g.State)
	}

	r, err := client.Round(ctx, g.RoundID)
	if err != nil {
		return model.Group{}, model.Round{}, fmt.Errorf("failed to fetch round %d: %w", g.RoundID, err)
	}
	return g, r, nil
}

// submitCalls sends calls with config.Workers workers. Calls on the same
// result always go to the same worker, so they reach the service in order.
// The outcome of each call is returned at its index.
func submitCalls(ctx context.Context, config *Config, client *HTTPClient, groupID int64, calls []Call, stats *Stats) ([]Outcome, error) {
	workers := max(config.Workers, 1)
	log := logger.Get()
	log.Info(ctx, "submitting judging calls", logger.Int("calls", len(calls)), logger.Int("workers", workers))

	outcomes := make([]Outcome, len(calls))
	var submitted, applied, duplicate, rejected, failed atomic.Int64

	lanes := make([]chan int, workers)
	for i := range lanes {
		lanes[i] = make(chan int, workers)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, lane := range lanes {
		eg.Go(func() error {
			for idx := range lane {
				if err := egCtx.Err(); err != nil {
					return err
				}
				out := client.Judge(egCtx, groupID, calls[idx])
				outcomes[idx] = out
				submitted.Add(1)
				switch out {
				case OutcomeApplied:
					applied.Add(1)
				case OutcomeDuplicate:
					duplicate.Add(1)
				case OutcomeRejected:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
			}
			return nil
		})
	}

	// Progress reporting
	done := make(chan struct{})
	if config.Verbose {
		go func() {
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					log.Info(ctx, "progress",
						logger.Int64("submitted", submitted.Load()),
						logger.Int("total", len(calls)),
						logger.Int64("applied", applied.Load()),
						logger.Int64("duplicate", duplicate.Load()),
						logger.Int64("rejected", rejected.Load()),
						logger.Int64("failed", failed.Load()))
				}
			}
		}()
	}

	// Send calls to workers
	eg.Go(func() error {
		defer func() {
			for _, lane := range lanes {
				close(lane)
			}
		}()
		for i, call := range calls {
			lane := lanes[laneOf(call, workers)]
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			case lane <- i:
			}
		}
		return nil
	})

	err := eg.Wait()
	close(done)

	stats.CallsSubmitted = int(submitted.Load())
	stats.CallsApplied = int(applied.Load())
	stats.CallsDuplicate = int(duplicate.Load())
	stats.CallsRejected = int(rejected.Load())
	stats.CallsFailed = int(failed.Load())

	log.Info(ctx, "call submission completed",
		logger.Int("applied", stats.CallsApplied),
		logger.Int("duplicate", stats.CallsDuplicate),
		logger.Int("rejected", stats.CallsRejected),
		logger.Int("failed", stats.CallsFailed))
	return outcomes, err
}

func laneOf(c Call, workers int) int {
	h := uint64(c.ClimberID)*31 + uint64(c.BoulderID)
	return int(h % uint64(workers))
}

// saveCallsToFile writes the generated calls as a JSON array.
func saveCallsToFile(ctx context.Context, filename string, calls []Call) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calls: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write calls: %w", err)
	}
	logger.Get().Info(ctx, "calls saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, callsPerSecond float64

	if stats.CallsSubmitted > 0 {
		answered := stats.CallsApplied + stats.CallsDuplicate
		successRate = float64(answered) / float64(stats.CallsSubmitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		callsPerSecond = float64(stats.CallsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("callsGenerated", stats.CallsGenerated),
		logger.Int("callsSubmitted", stats.CallsSubmitted),
		logger.Int("callsApplied", stats.CallsApplied),
		logger.Int("callsDuplicate", stats.CallsDuplicate),
		logger.Int("callsRejected", stats.CallsRejected),
		logger.Int("callsFailed", stats.CallsFailed),
		logger.Int("resultsChecked", stats.ResultsChecked),
		logger.Int("rankedClimbers", stats.RankedClimbers),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("callsPerSecond", callsPerSecond))
}
