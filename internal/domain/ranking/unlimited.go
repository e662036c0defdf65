package ranking

import (
	"cmp"
	"math"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
)

// boulderPoints is shared between the climbers who top a boulder.
const boulderPoints = 1000

// unlimited ranks UNLIMITED_CONTEST groups by points.
type unlimited struct {
	tolerance float64
}

// BoulderValue returns the points of a boulder topped by n climbers.
func BoulderValue(n int) float64 {
	if n <= 0 {
		return boulderPoints
	}
	return math.Round(boulderPoints/float64(n)*100) / 100
}

func (s unlimited) Rank(boulders []model.Boulder, results []model.Result) types.Rankings {
	idx := boulderIndex(boulders)

	toppers := make([]int, len(boulders))
	for _, r := range results {
		if i, ok := idx[r.BoulderID]; ok && r.Top {
			toppers[i]++
		}
	}
	values := make([]float64, len(boulders))
	for i, n := range toppers {
		values[i] = BoulderValue(n)
	}

	pos := make(map[int64]int)
	entries := make([]types.Entry, 0)
	for _, r := range results {
		i, ok := idx[r.BoulderID]
		if !ok {
			continue
		}
		p, seen := pos[r.ClimberID]
		if !seen {
			p = len(entries)
			pos[r.ClimberID] = p
			entries = append(entries, types.Entry{
				ClimberID: r.ClimberID,
				Tops:      make([]bool, len(boulders)),
				Unlimited: &types.Unlimited{},
			})
		}
		e := &entries[p]
		if r.Top && !e.Tops[i] {
			e.Tops[i] = true
			e.NbTops++
			e.Points += values[i]
		}
	}
	for i := range entries {
		entries[i].Points = math.Round(entries[i].Points*100) / 100
	}

	sortEntries(entries, func(a, b *types.Entry) int {
		return cmp.Compare(b.Points, a.Points)
	})
	// ex-aequo is measured against the first climber holding the rank so a
	// run of near-equal totals cannot drift
	head := 0
	for i := range entries {
		if i > 0 && s.same(entries[head].Points, entries[i].Points) {
			entries[i].Ranking = entries[head].Ranking
			continue
		}
		head = i
		entries[i].Ranking = i + 1
	}
	return types.Rankings{Type: model.FormatUnlimitedContest, Entries: entries, BouldersPoints: values}
}

func (s unlimited) same(a, b float64) bool {
	return math.Abs(a-b) < s.tolerance
}
