// Package ranking computes group, round and competition rankings from results.
package ranking

import (
	"fmt"
	"sort"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
)

// DefaultTolerance is the points gap under which two unlimited contest
// climbers are ex-aequo.
const DefaultTolerance = 1e-3

// Strategy ranks the results of one group.
type Strategy interface {
	// Rank returns entries in ranking order. Results on boulders that are not
	// listed are ignored.
	Rank(boulders []model.Boulder, results []model.Result) types.Rankings
}

// Option configures strategies returned by For.
type Option func(*options)

type options struct {
	tolerance float64
}

// WithTolerance sets the unlimited contest ex-aequo tolerance.
func WithTolerance(t float64) Option {
	return func(o *options) {
		if t >= 0 {
			o.tolerance = t
		}
	}
}

// For returns the strategy of a ranking type.
func For(f model.Format, opts ...Option) (Strategy, error) {
	o := options{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(&o)
	}
	switch f {
	case model.FormatCircuit, model.FormatLimitedContest:
		return counted{format: f}, nil
	case model.FormatUnlimitedContest:
		return unlimited{tolerance: o.tolerance}, nil
	default:
		return nil, fmt.Errorf("no strategy for ranking type %q: %w", f, model.ErrFormatMismatch)
	}
}

// boulderIndex maps boulder ids to their position in the group.
func boulderIndex(boulders []model.Boulder) map[int64]int {
	idx := make(map[int64]int, len(boulders))
	for i, b := range boulders {
		idx[b.ID] = i
	}
	return idx
}

// assignRanks numbers sorted entries with standard competition ranking:
// ex-aequo entries share a rank and the next rank skips accordingly.
func assignRanks(entries []types.Entry, same func(a, b int) bool) {
	for i := range entries {
		if i > 0 && same(i-1, i) {
			entries[i].Ranking = entries[i-1].Ranking
			continue
		}
		entries[i].Ranking = i + 1
	}
}

// sortEntries orders entries with less, breaking remaining ties by climber id
// so equal inputs always give the same output.
func sortEntries(entries []types.Entry, cmp func(a, b *types.Entry) int) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := cmp(&entries[i], &entries[j]); c != 0 {
			return c < 0
		}
		return entries[i].ClimberID < entries[j].ClimberID
	})
}
