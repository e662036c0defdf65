package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ScopeKind is the granularity a ranking is computed and broadcast at.
type ScopeKind string

const (
	ScopeGroup       ScopeKind = "group"
	ScopeRound       ScopeKind = "round"
	ScopeCompetition ScopeKind = "competition"
)

// Scope names one ranking: a group, a round or a whole competition.
type Scope struct {
	Kind ScopeKind
	ID   int64
}

func GroupScope(id int64) Scope       { return Scope{Kind: ScopeGroup, ID: id} }
func RoundScope(id int64) Scope       { return Scope{Kind: ScopeRound, ID: id} }
func CompetitionScope(id int64) Scope { return Scope{Kind: ScopeCompetition, ID: id} }

// String renders the scope as "kind:id".
func (s Scope) String() string {
	return string(s.Kind) + ":" + strconv.FormatInt(s.ID, 10)
}

// ParseScope parses "group:12", "round:3" or "competition:1".
func ParseScope(v string) (Scope, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return Scope{}, fmt.Errorf("scope %q: expected kind:id: %w", v, ErrInvalidInput)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Scope{}, fmt.Errorf("scope %q: bad id: %w", v, ErrInvalidInput)
	}
	switch k := ScopeKind(strings.ToLower(kind)); k {
	case ScopeGroup, ScopeRound, ScopeCompetition:
		return Scope{Kind: k, ID: n}, nil
	default:
		return Scope{}, fmt.Errorf("scope %q: unknown kind: %w", v, ErrInvalidInput)
	}
}

func (s Scope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Scope) UnmarshalText(b []byte) error {
	v, err := ParseScope(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
