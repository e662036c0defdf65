package testjudging

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/logger"
)

// Call mix probabilities.
const (
	tryChance  = 0.7
	topChance  = 0.3
	zoneChance = 0.3
	sendChance = 0.7 // share of top and zone calls that grant rather than revoke
)

// Generate builds n judging calls over the boulders and roster of g, shaped
// for the ranking type of r. A share dupRate of the calls resubmits an
// earlier call with its request id. The same seed yields the same calls.
func Generate(g model.Group, r model.Round, n int, seed uint64, dupRate float64) ([]Call, error) {
	if len(g.Boulders) == 0 || len(g.Climbers) == 0 {
		return nil, fmt.Errorf("%w: group %d", ErrEmptyGroup, g.ID)
	}

	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)
	rng := rand.New(src)

	calls := make([]Call, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 && rng.Float64() < dupRate {
			dup := calls[rng.IntN(len(calls))]
			dup.Seq = i
			calls = append(calls, dup)
			continue
		}

		id, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to generate request id: %w", err)
		}
		call := Call{
			Seq:       i,
			ClimberID: g.Climbers[rng.IntN(len(g.Climbers))].ID,
			BoulderID: g.Boulders[rng.IntN(len(g.Boulders))].ID,
			RequestID: id.String(),
		}
		shape(&call, r.Format, rng)
		calls = append(calls, call)
	}
	return calls, nil
}

// shape fills the judging fields the format accepts; at least one is set.
func shape(c *Call, f model.Format, rng *rand.Rand) {
	if f.CountsTries() && rng.Float64() < tryChance {
		c.Try = true
	}
	if rng.Float64() < topChance {
		c.Top = flag(rng)
	}
	if f.CountsZones() && rng.Float64() < zoneChance {
		c.Zone = flag(rng)
	}
	if c.Try || c.Top != nil || c.Zone != nil {
		return
	}
	if f.CountsTries() {
		c.Try = true
		return
	}
	c.Top = flag(rng)
}

func flag(rng *rand.Rand) *bool {
	v := rng.Float64() < sendChance
	return &v
}

// generateCalls wraps Generate with logging and stats.
func generateCalls(ctx context.Context, config *Config, g model.Group, r model.Round, stats *Stats) ([]Call, error) {
	logger.Get().Info(ctx, "generating judging calls",
		logger.Int("calls", config.Calls),
		logger.Uint64("seed", config.Seed),
		logger.String("rankingType", r.Format.String()))

	calls, err := Generate(g, r, config.Calls, config.Seed, config.DupRate)
	if err != nil {
		return nil, err
	}
	stats.CallsGenerated = len(calls)
	return calls, nil
}
