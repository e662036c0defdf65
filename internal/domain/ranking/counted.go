package ranking

import (
	"cmp"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
)

// counted ranks CIRCUIT and LIMITED_CONTEST groups.
type counted struct {
	format model.Format
}

type countedKey struct {
	tops, zones               int
	topsInTries, zonesInTries int
}

func (k countedKey) compare(o countedKey) int {
	if c := cmp.Compare(o.tops, k.tops); c != 0 {
		return c
	}
	if c := cmp.Compare(o.zones, k.zones); c != 0 {
		return c
	}
	if c := cmp.Compare(k.topsInTries, o.topsInTries); c != 0 {
		return c
	}
	return cmp.Compare(k.zonesInTries, o.zonesInTries)
}

func newCountedEntry(climberID int64, boulders int) types.Entry {
	return types.Entry{
		ClimberID: climberID,
		Tops:      make([]bool, boulders),
		Counted: &types.Counted{
			TopsInTries:  make([]int, boulders),
			Zones:        make([]bool, boulders),
			ZonesInTries: make([]int, boulders),
		},
	}
}

func (s counted) Rank(boulders []model.Boulder, results []model.Result) types.Rankings {
	idx := boulderIndex(boulders)
	pos := make(map[int64]int)
	entries := make([]types.Entry, 0)
	keys := make(map[int64]countedKey)

	for _, r := range results {
		i, ok := idx[r.BoulderID]
		if !ok {
			continue
		}
		p, seen := pos[r.ClimberID]
		if !seen {
			p = len(entries)
			pos[r.ClimberID] = p
			entries = append(entries, newCountedEntry(r.ClimberID, len(boulders)))
		}
		e := &entries[p]
		e.Tops[i] = r.Top
		e.TopsInTries[i] = r.TopInTries
		e.Zones[i] = r.Zone
		e.ZonesInTries[i] = r.ZoneInTries

		k := keys[r.ClimberID]
		if r.Top {
			k.tops++
			k.topsInTries += r.TopInTries
		}
		if r.Zone {
			k.zones++
			k.zonesInTries += r.ZoneInTries
		}
		keys[r.ClimberID] = k
	}

	sortEntries(entries, func(a, b *types.Entry) int {
		return keys[a.ClimberID].compare(keys[b.ClimberID])
	})
	assignRanks(entries, func(a, b int) bool {
		return keys[entries[a].ClimberID] == keys[entries[b].ClimberID]
	})
	return types.Rankings{Type: s.format, Entries: entries}
}
