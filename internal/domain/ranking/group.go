package ranking

import (
	"cmp"
	"slices"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
)

const podiumSize = 3

// Group ranks one group of a round. Finals break podium ties by countback and
// semi-finals and finals list roster climbers without results last.
func Group(round model.Round, group model.Group, results []model.Result, opts ...Option) (types.Rankings, error) {
	s, err := For(round.Format, opts...)
	if err != nil {
		return types.Rankings{}, err
	}

	own := make([]model.Result, 0, len(results))
	for _, r := range results {
		if r.GroupID == group.ID && group.HasClimber(r.ClimberID) {
			own = append(own, r)
		}
	}
	rk := s.Rank(group.Boulders, own)

	if round.Type == model.RoundFinal && rk.Type != model.FormatUnlimitedContest {
		breakPodiumTies(rk.Entries)
	}
	if (round.Type == model.RoundSemiFinal || round.Type == model.RoundFinal) && len(rk.Entries) > 0 {
		rk.Entries = appendUnranked(rk, group)
	}
	for i := range rk.Entries {
		rk.Entries[i].GroupID = group.ID
	}
	return rk, nil
}

// tally counts tops and zones by the try they were made in.
type tally struct {
	tops, zones []int
}

func countback(e *types.Entry) tally {
	var t tally
	for i := range e.Tops {
		if n := e.TopsInTries[i]; e.Tops[i] && n > 0 {
			t.tops = bump(t.tops, n)
		}
		if n := e.ZonesInTries[i]; e.Zones[i] && n > 0 {
			t.zones = bump(t.zones, n)
		}
	}
	return t
}

func bump(v []int, try int) []int {
	for len(v) < try {
		v = append(v, 0)
	}
	v[try-1]++
	return v
}

// compare puts the climber with more early tops, then more early zones, first.
func (t tally) compare(o tally) int {
	if c := compareCounts(t.tops, o.tops); c != 0 {
		return c
	}
	return compareCounts(t.zones, o.zones)
}

func compareCounts(a, b []int) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		if c := cmp.Compare(at(b, i), at(a, i)); c != 0 {
			return c
		}
	}
	return 0
}

func at(v []int, i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// breakPodiumTies renumbers every run of ex-aequo entries that holds a podium
// rank. Entries outside the podium keep their rank.
func breakPodiumTies(entries []types.Entry) {
	for start := 0; start < len(entries); {
		end := start + 1
		for end < len(entries) && entries[end].Ranking == entries[start].Ranking {
			end++
		}
		rank := entries[start].Ranking
		if rank <= podiumSize && end-start > 1 {
			run := entries[start:end]
			tallies := make(map[int64]tally, len(run))
			for i := range run {
				tallies[run[i].ClimberID] = countback(&run[i])
			}
			sortEntries(run, func(a, b *types.Entry) int {
				return tallies[a.ClimberID].compare(tallies[b.ClimberID])
			})
			for i := range run {
				if i > 0 && tallies[run[i-1].ClimberID].compare(tallies[run[i].ClimberID]) == 0 {
					run[i].Ranking = run[i-1].Ranking
					continue
				}
				run[i].Ranking = rank + i
			}
		}
		start = end
	}
}

// appendUnranked places roster climbers without results after everybody else.
func appendUnranked(rk types.Rankings, group model.Group) []types.Entry {
	ranked := make(map[int64]struct{}, len(rk.Entries))
	for _, e := range rk.Entries {
		ranked[e.ClimberID] = struct{}{}
	}
	ids := group.ClimberIDs()
	slices.Sort(ids)

	last := len(rk.Entries) + 1
	out := rk.Entries
	for _, id := range ids {
		if _, ok := ranked[id]; ok {
			continue
		}
		var e types.Entry
		if rk.Type == model.FormatUnlimitedContest {
			e = types.Entry{ClimberID: id, Tops: make([]bool, len(group.Boulders)), Unlimited: &types.Unlimited{}}
		} else {
			e = newCountedEntry(id, len(group.Boulders))
		}
		e.Ranking = last
		out = append(out, e)
	}
	return out
}
