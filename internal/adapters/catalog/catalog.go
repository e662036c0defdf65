// Package catalog holds competition, round and group metadata.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/logger"
)

// Catalog is an in-memory metadata store. Returned values are copies.
type Catalog struct {
	mu           sync.RWMutex
	competitions map[int64]*model.Competition
	rounds       map[int64]*model.Round
	groups       map[int64]*model.Group
	boulderSeq   int64
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		competitions: make(map[int64]*model.Competition),
		rounds:       make(map[int64]*model.Round),
		groups:       make(map[int64]*model.Group),
	}
}

// AddCompetition registers a competition without rounds.
func (c *Catalog) AddCompetition(comp model.Competition) error {
	if comp.ID <= 0 {
		return fmt.Errorf("competition id %d: %w", comp.ID, model.ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.competitions[comp.ID]; ok {
		return fmt.Errorf("competition %d: %w", comp.ID, ErrDuplicateID)
	}
	comp.RoundIDs = nil
	c.competitions[comp.ID] = &comp
	return nil
}

// AddRound registers a round under an existing competition. Rounds are kept
// in the order they are added.
func (c *Catalog) AddRound(r model.Round) error {
	if r.ID <= 0 {
		return fmt.Errorf("round id %d: %w", r.ID, model.ErrInvalidInput)
	}
	if !r.Format.Valid() {
		return fmt.Errorf("round %d: %w", r.ID, model.ErrFormatMismatch)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	comp, ok := c.competitions[r.CompetitionID]
	if !ok {
		return fmt.Errorf("competition %d: %w", r.CompetitionID, ErrNotFound)
	}
	if _, ok := c.rounds[r.ID]; ok {
		return fmt.Errorf("round %d: %w", r.ID, ErrDuplicateID)
	}
	r.Index = len(comp.RoundIDs)
	r.GroupIDs = nil
	c.rounds[r.ID] = &r
	comp.RoundIDs = append(comp.RoundIDs, r.ID)
	return nil
}

// AddGroup registers a group under an existing round. Boulder indexes are
// assigned from slice order.
func (c *Catalog) AddGroup(g model.Group) error {
	if g.ID <= 0 {
		return fmt.Errorf("group id %d: %w", g.ID, model.ErrInvalidInput)
	}
	if g.State == "" {
		g.State = model.GroupPending
	}
	if !g.State.Valid() {
		return fmt.Errorf("group %d state %q: %w", g.ID, g.State, model.ErrInvalidInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	round, ok := c.rounds[g.RoundID]
	if !ok {
		return fmt.Errorf("round %d: %w", g.RoundID, ErrNotFound)
	}
	if _, ok := c.groups[g.ID]; ok {
		return fmt.Errorf("group %d: %w", g.ID, ErrDuplicateID)
	}
	g = clone(g)
	for i := range g.Boulders {
		if g.Boulders[i].ID <= 0 {
			return fmt.Errorf("group %d boulder %d: %w", g.ID, i, model.ErrInvalidInput)
		}
		g.Boulders[i].GroupID = g.ID
		g.Boulders[i].Index = i
		c.boulderSeq = max(c.boulderSeq, g.Boulders[i].ID)
	}
	c.groups[g.ID] = &g
	round.GroupIDs = append(round.GroupIDs, g.ID)
	return nil
}

// Competition returns a competition by id.
func (c *Catalog) Competition(_ context.Context, id int64) (model.Competition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.competitions[id]
	if !ok {
		return model.Competition{}, fmt.Errorf("competition %d: %w", id, ErrNotFound)
	}
	out := *comp
	out.RoundIDs = slices.Clone(comp.RoundIDs)
	return out, nil
}

// Round returns a round by id.
func (c *Catalog) Round(_ context.Context, id int64) (model.Round, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rounds[id]
	if !ok {
		return model.Round{}, fmt.Errorf("round %d: %w", id, ErrNotFound)
	}
	out := *r
	out.GroupIDs = slices.Clone(r.GroupIDs)
	return out, nil
}

// Group returns a group by id.
func (c *Catalog) Group(_ context.Context, id int64) (model.Group, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[id]
	if !ok {
		return model.Group{}, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	return clone(*g), nil
}

// SetGroupState moves a group through PENDING, ONGOING and ENDED. Going
// backwards is rejected.
func (c *Catalog) SetGroupState(_ context.Context, id int64, state model.GroupState) (model.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[id]
	if !ok {
		return model.Group{}, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	if !g.State.CanTransitionTo(state) {
		return model.Group{}, fmt.Errorf("group %d %s -> %s: %w", id, g.State, state, model.ErrInvalidTransition)
	}
	if g.State != state {
		logger.Get().Info(context.Background(), "group state changed",
			logger.Int64("group_id", id),
			logger.String("from", string(g.State)),
			logger.String("to", string(state)))
	}
	g.State = state
	return clone(*g), nil
}

// InsertBoulder inserts b at index, shifting the boulders at and after index
// by one. index may equal the boulder count to append. A zero b.ID gets a
// fresh id.
func (c *Catalog) InsertBoulder(_ context.Context, groupID int64, index int, b model.Boulder) (model.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[groupID]
	if !ok {
		return model.Group{}, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if index < 0 || index > len(g.Boulders) {
		return model.Group{}, fmt.Errorf("boulder index %d outside [0,%d]: %w", index, len(g.Boulders), model.ErrInvalidTransition)
	}
	if b.ID == 0 {
		c.boulderSeq++
		b.ID = c.boulderSeq
	} else if c.boulderExists(b.ID) {
		return model.Group{}, fmt.Errorf("boulder %d: %w", b.ID, ErrDuplicateID)
	}
	c.boulderSeq = max(c.boulderSeq, b.ID)

	b.GroupID = groupID
	b.Judges = slices.Clone(b.Judges)
	g.Boulders = slices.Insert(g.Boulders, index, b)
	renumber(g.Boulders)
	return clone(*g), nil
}

// RemoveBoulder deletes a boulder and closes the gap in the numbering.
func (c *Catalog) RemoveBoulder(_ context.Context, groupID, boulderID int64) (model.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[groupID]
	if !ok {
		return model.Group{}, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	i := slices.IndexFunc(g.Boulders, func(b model.Boulder) bool { return b.ID == boulderID })
	if i < 0 {
		return model.Group{}, fmt.Errorf("boulder %d: %w", boulderID, model.ErrBoulderNotInGroup)
	}
	g.Boulders = slices.Delete(g.Boulders, i, i+1)
	renumber(g.Boulders)
	return clone(*g), nil
}

// RemoveClimber takes a climber off the group roster.
func (c *Catalog) RemoveClimber(_ context.Context, groupID, climberID int64) (model.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[groupID]
	if !ok {
		return model.Group{}, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	i := slices.IndexFunc(g.Climbers, func(cl model.Climber) bool { return cl.ID == climberID })
	if i < 0 {
		return model.Group{}, fmt.Errorf("climber %d: %w", climberID, model.ErrClimberNotInGroup)
	}
	g.Climbers = slices.Delete(g.Climbers, i, i+1)
	return clone(*g), nil
}

// Stats returns entity counts.
func (c *Catalog) Stats() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]int{
		"competitions": len(c.competitions),
		"rounds":       len(c.rounds),
		"groups":       len(c.groups),
	}
}

func (c *Catalog) boulderExists(id int64) bool {
	for _, g := range c.groups {
		if _, ok := g.Boulder(id); ok {
			return true
		}
	}
	return false
}

func renumber(bs []model.Boulder) {
	for i := range bs {
		bs[i].Index = i
	}
}

func clone(g model.Group) model.Group {
	g.Boulders = slices.Clone(g.Boulders)
	for i := range g.Boulders {
		g.Boulders[i].Judges = slices.Clone(g.Boulders[i].Judges)
	}
	g.Climbers = slices.Clone(g.Climbers)
	return g
}
