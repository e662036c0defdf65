package testjudging

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/okian/crux/internal/domain/judging"
	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/ranking"
	"github.com/okian/crux/internal/domain/types"
	"github.com/okian/crux/pkg/logger"
)

const (
	topPerformers = 10
	pointsMargin  = 1e-9
)

// Replay applies calls over baseline the way the service does: calls run in
// order, a request id is skipped once it has been applied and a rejected call
// leaves the result untouched. It returns the expected results and the
// expected outcome of every call.
func Replay(r model.Round, groupID int64, baseline []model.Result, calls []Call) (map[model.ResultKey]model.Result, []Outcome) {
	results := make(map[model.ResultKey]model.Result, len(baseline))
	for _, res := range baseline {
		results[res.ResultKey] = res
	}
	rules := judging.Rules{Format: r.Format, MaxTries: r.MaxTries}
	applied := make(map[string]struct{})
	outcomes := make([]Outcome, len(calls))

	for i, call := range calls {
		if _, ok := applied[call.RequestID]; ok && call.RequestID != "" {
			outcomes[i] = OutcomeDuplicate
			continue
		}
		key := call.Key(groupID)
		cur, ok := results[key]
		if !ok {
			cur = model.Result{ResultKey: key}
		}
		next, err := judging.Apply(cur, rules, call.Input(groupID))
		if err != nil {
			outcomes[i] = OutcomeRejected
			continue
		}
		results[key] = next
		outcomes[i] = OutcomeApplied
		if call.RequestID != "" {
			applied[call.RequestID] = struct{}{}
		}
	}
	return results, outcomes
}

// verifyOutcomes compares the observed outcome of each call to the replay.
func verifyOutcomes(expected, observed []Outcome) error {
	if diff := cmp.Diff(expected, observed); diff != "" {
		return fmt.Errorf("%w: outcomes (-want +got):\n%s", ErrResultsMismatch, diff)
	}
	return nil
}

// verifyResults compares the served results to the replay.
func verifyResults(expected map[model.ResultKey]model.Result, served []model.Result) error {
	got := make(map[model.ResultKey]model.Result, len(served))
	for _, res := range served {
		got[res.ResultKey] = res
	}
	if diff := cmp.Diff(expected, got, cmpopts.EquateEmpty()); diff != "" {
		return fmt.Errorf("%w (-want +got):\n%s", ErrResultsMismatch, diff)
	}
	return nil
}

// verifyRankings ranks the served results locally and compares the outcome
// to the ranking the service publishes for the group.
func verifyRankings(r model.Round, g model.Group, served []model.Result, ev types.RankingEvent, tolerance float64) (types.Rankings, error) {
	want, err := ranking.Group(r, g, served, ranking.WithTolerance(tolerance))
	if err != nil {
		return types.Rankings{}, fmt.Errorf("failed to rank group %d locally: %w", g.ID, err)
	}
	if ev.RankingType != r.Format {
		return want, fmt.Errorf("%w: ranking type %s, round is %s", ErrRankingsMismatch, ev.RankingType, r.Format)
	}
	diff := cmp.Diff(want, ev.Rankings, cmpopts.EquateEmpty(), cmpopts.EquateApprox(0, pointsMargin))
	if diff != "" {
		return want, fmt.Errorf("%w (-want +got):\n%s", ErrRankingsMismatch, diff)
	}
	return want, nil
}

// verify runs every check that applies and joins their errors. Exact result
// checks need every call answered, so they are skipped after a failure.
func verify(ctx context.Context, config *Config, client *HTTPClient, r model.Round, g model.Group,
	baseline []model.Result, calls []Call, observed []Outcome, stats *Stats,
) error {
	log := logger.Get()
	log.Info(ctx, "verifying results")

	served, err := client.Results(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch results: %w", err)
	}
	stats.ResultsChecked = len(served)

	var errs []error
	if stats.CallsFailed == 0 {
		expected, outcomes := Replay(r, g.ID, baseline, calls)
		errs = append(errs, verifyOutcomes(outcomes, observed), verifyResults(expected, served))
	} else {
		log.Warn(ctx, "skipping replay check after failed calls", logger.Int("failed", stats.CallsFailed))
	}

	ev, err := client.Rankings(ctx, model.GroupScope(g.ID))
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("failed to fetch rankings: %w", err))...)
	}
	want, err := verifyRankings(r, g, served, ev, config.Tolerance)
	errs = append(errs, err)
	stats.RankedClimbers = len(ev.Rankings.Entries)

	displayTopPerformers(ctx, want, config.Verbose)
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Info(ctx, "result verification completed", logger.Uint64("version", ev.Version))
	return nil
}

// displayTopPerformers logs the head of the ranking.
func displayTopPerformers(ctx context.Context, rk types.Rankings, verbose bool) {
	n := min(topPerformers, len(rk.Entries))
	log := logger.Get()
	for _, e := range rk.Entries[:n] {
		fields := []logger.Field{
			logger.Int("ranking", e.Ranking),
			logger.Int64("climberId", e.ClimberID),
		}
		if e.Unlimited != nil {
			fields = append(fields, logger.Int("tops", e.NbTops), logger.Float64("points", e.Points))
		}
		if verbose && e.Counted != nil {
			fields = append(fields, logger.Any("topsInTries", e.TopsInTries), logger.Any("zonesInTries", e.ZonesInTries))
		}
		log.Info(ctx, "top performer", fields...)
	}
}
