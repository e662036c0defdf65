package ranking

import (
	"cmp"
	"math"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
)

// Round merges the group rankings of one round. Climbers keep their group
// line and are ex-aequo exactly when their group ranks are equal.
func Round(format model.Format, groups []types.Rankings) types.Rankings {
	entries := make([]types.Entry, 0)
	for _, g := range groups {
		entries = append(entries, g.Entries...)
	}
	sortEntries(entries, func(a, b *types.Entry) int {
		if c := cmp.Compare(a.Ranking, b.Ranking); c != 0 {
			return c
		}
		return cmp.Compare(a.GroupID, b.GroupID)
	})
	groupRank := make([]int, len(entries))
	for i := range entries {
		groupRank[i] = entries[i].Ranking
	}
	assignRanks(entries, func(a, b int) bool { return groupRank[a] == groupRank[b] })
	return types.Rankings{Type: format, Entries: entries}
}

// Competition ranks every climber of a competition from its round rankings,
// given in round order. Reaching a later round beats any rank in an earlier
// one; climbers stopped at the same round are ordered by their rank there,
// then by their ranks in the rounds before.
func Competition(rounds []types.Rankings) types.Rankings {
	paths := make(map[int64][]int)
	for r := len(rounds) - 1; r >= 0; r-- {
		for _, e := range rounds[r].Entries {
			p, ok := paths[e.ClimberID]
			if !ok {
				p = make([]int, r+1)
				for i := range p {
					p[i] = math.MaxInt
				}
				paths[e.ClimberID] = p
			}
			if r < len(p) {
				p[len(p)-1-r] = e.Ranking
			}
		}
	}

	entries := make([]types.Entry, 0, len(paths))
	for id := range paths {
		entries = append(entries, types.Entry{ClimberID: id})
	}
	comparePaths := func(a, b []int) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		for i := range a {
			if c := cmp.Compare(a[i], b[i]); c != 0 {
				return c
			}
		}
		return 0
	}
	sortEntries(entries, func(a, b *types.Entry) int {
		return comparePaths(paths[a.ClimberID], paths[b.ClimberID])
	})
	assignRanks(entries, func(a, b int) bool {
		return comparePaths(paths[entries[a].ClimberID], paths[entries[b].ClimberID]) == 0
	})
	return types.Rankings{Entries: entries}
}
