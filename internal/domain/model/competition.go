package model

import (
	"fmt"
	"strings"
)

// GroupState gates whether a group accepts new results.
type GroupState string

const (
	GroupPending GroupState = "PENDING"
	GroupOngoing GroupState = "ONGOING"
	GroupEnded   GroupState = "ENDED"
)

func (s GroupState) order() int {
	switch s {
	case GroupPending:
		return 0
	case GroupOngoing:
		return 1
	case GroupEnded:
		return 2 //nolint:mnd // lifecycle position
	default:
		return -1
	}
}

// Valid reports whether s is a known state.
func (s GroupState) Valid() bool { return s.order() >= 0 }

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// States only move forward; staying in place is allowed.
func (s GroupState) CanTransitionTo(next GroupState) bool {
	return next.Valid() && s.Valid() && next.order() >= s.order()
}

// ParseGroupState parses a state name (case-insensitive).
func ParseGroupState(v string) (GroupState, error) {
	s := GroupState(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown group state %q: %w", v, ErrInvalidInput)
	}
	return s, nil
}

// RoundType is the stage of a round inside a competition.
type RoundType string

const (
	RoundQualifier RoundType = "QUALIFIER"
	RoundSemiFinal RoundType = "SEMI_FINAL"
	RoundFinal     RoundType = "FINAL"
)

// Climber is an external identity referenced by results.
type Climber struct {
	ID        int64  `json:"id" yaml:"id"`
	FirstName string `json:"firstName" yaml:"first_name"`
	LastName  string `json:"lastName" yaml:"last_name"`
	Club      string `json:"club,omitempty" yaml:"club"`
}

// Boulder belongs to one group; Index is zero-based and unique in the group.
type Boulder struct {
	ID      int64   `json:"id" yaml:"id"`
	GroupID int64   `json:"groupId" yaml:"-"`
	Index   int     `json:"index" yaml:"-"`
	Name    string  `json:"name,omitempty" yaml:"name"`
	Judges  []int64 `json:"judges,omitempty" yaml:"judges"`
}

// Group owns an ordered set of boulders and a roster of climbers.
type Group struct {
	ID       int64      `json:"id"`
	RoundID  int64      `json:"roundId"`
	Name     string     `json:"name"`
	State    GroupState `json:"state"`
	Boulders []Boulder  `json:"boulders"` // ordered by Index
	Climbers []Climber  `json:"climbers"`
}

// HasClimber reports whether the climber is on the roster.
func (g *Group) HasClimber(id int64) bool {
	for i := range g.Climbers {
		if g.Climbers[i].ID == id {
			return true
		}
	}
	return false
}

// Boulder returns the group boulder with the given id.
func (g *Group) Boulder(id int64) (Boulder, bool) {
	for _, b := range g.Boulders {
		if b.ID == id {
			return b, true
		}
	}
	return Boulder{}, false
}

// ClimberIDs returns the roster ids in roster order.
func (g *Group) ClimberIDs() []int64 {
	ids := make([]int64, len(g.Climbers))
	for i := range g.Climbers {
		ids[i] = g.Climbers[i].ID
	}
	return ids
}

// Round carries the scoring format of its groups.
type Round struct {
	ID            int64     `json:"id"`
	CompetitionID int64     `json:"competitionId"`
	Name          string    `json:"name"`
	Index         int       `json:"index"`
	Type          RoundType `json:"type"`
	Format        Format    `json:"rankingType"`
	MaxTries      int       `json:"maxTries,omitempty"` // LIMITED_CONTEST only; 0 means uncapped
	GroupIDs      []int64   `json:"groupIds"`
}

// Competition groups rounds; it is the widest ranking scope.
type Competition struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	RoundIDs []int64 `json:"roundIds"`
}
