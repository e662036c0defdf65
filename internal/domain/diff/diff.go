// Package diff computes which climbers entered or left a ranking.
package diff

import "github.com/okian/crux/internal/domain/types"

// Compute lists climbers added to current (in current order) and then those
// removed from previous (in previous order). Rank moves are not changes.
// The result is never nil.
func Compute(previous, current []types.Entry) []types.Change {
	before := make(map[int64]struct{}, len(previous))
	for _, e := range previous {
		before[e.ClimberID] = struct{}{}
	}
	now := make(map[int64]struct{}, len(current))
	for _, e := range current {
		now[e.ClimberID] = struct{}{}
	}

	changes := make([]types.Change, 0)
	for _, e := range current {
		if _, ok := before[e.ClimberID]; !ok {
			changes = append(changes, types.Change{ClimberID: e.ClimberID, Added: true})
		}
	}
	for _, e := range previous {
		if _, ok := now[e.ClimberID]; !ok {
			changes = append(changes, types.Change{ClimberID: e.ClimberID})
		}
	}
	return changes
}
