// Package types contains the ranking shapes shared by the domain, the
// adapters and the wire.
package types

import "github.com/okian/crux/internal/domain/model"

// Counted holds the per-boulder arrays of CIRCUIT and LIMITED_CONTEST rankings.
// Arrays are indexed by boulder index.
type Counted struct {
	TopsInTries  []int  `json:"topsInTries"`
	Zones        []bool `json:"zones"`
	ZonesInTries []int  `json:"zonesInTries"`
}

// Unlimited holds the totals of an UNLIMITED_CONTEST ranking.
type Unlimited struct {
	NbTops int     `json:"nbTops"`
	Points float64 `json:"points"`
}

// Entry is one climber's line in a ranking.
type Entry struct {
	ClimberID int64  `json:"climberId"`
	Ranking   int    `json:"ranking"`
	GroupID   int64  `json:"groupId,omitempty"`
	Tops      []bool `json:"tops,omitempty"`
	*Counted
	*Unlimited
}

// Rankings is a full ranking of one scope.
type Rankings struct {
	Type           model.Format `json:"type,omitempty"`
	Entries        []Entry      `json:"rankings"`
	BouldersPoints []float64    `json:"bouldersPoints,omitempty"`
}

// ClimberIDs returns the ranked climber ids in ranking order.
func (r Rankings) ClimberIDs() []int64 {
	ids := make([]int64, len(r.Entries))
	for i := range r.Entries {
		ids[i] = r.Entries[i].ClimberID
	}
	return ids
}

// Change is one membership change between two rankings of the same scope.
type Change struct {
	ClimberID int64 `json:"climberId"`
	Added     bool  `json:"added"`
}

// RankingEvent is what subscribers of a scope receive.
type RankingEvent struct {
	Scope       model.Scope  `json:"scope"`
	RankingType model.Format `json:"rankingType,omitempty"`
	Rankings    Rankings     `json:"rankings"`
	Diff        []Change     `json:"diff"`
	Version     uint64       `json:"version"`
}
