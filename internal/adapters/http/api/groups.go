package api

import (
	"fmt"
	"net/http"

	"github.com/okian/crux/internal/domain/model"
)

type stateRequest struct {
	State string `json:"state" validate:"required,oneof=PENDING ONGOING ENDED pending ongoing ended"`
}

type boulderRequest struct {
	Index  *int    `json:"index" validate:"required,gte=0"`
	ID     int64   `json:"id,omitempty" validate:"gte=0"`
	Name   string  `json:"name,omitempty" validate:"max=64"`
	Judges []int64 `json:"judges,omitempty" validate:"omitempty,dive,gt=0"`
}

// GroupsHandler serves group lifecycle and roster edits.
type GroupsHandler struct {
	deps GroupDependencies
}

// NewGroupsHandler creates a new groups handler.
func NewGroupsHandler(deps GroupDependencies) *GroupsHandler {
	return &GroupsHandler{deps: deps}
}

// HandleGetGroup handles GET /groups/{groupId}.
func (h *GroupsHandler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId")
	if err != nil {
		fail(w, r, err)
		return
	}
	g, err := h.deps.Group(r.Context(), groupID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleGetRound handles GET /rounds/{roundId}.
func (h *GroupsHandler) HandleGetRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := pathID(r, "roundId")
	if err != nil {
		fail(w, r, err)
		return
	}
	round, err := h.deps.Round(r.Context(), roundID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// HandleSetState handles PUT /groups/{groupId}/state.
func (h *GroupsHandler) HandleSetState(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req stateRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	state, err := model.ParseGroupState(req.State)
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	g, err := h.deps.SetGroupState(r.Context(), groupID, state)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleInsertBoulder handles POST /groups/{groupId}/boulders. Boulders at
// and after index shift one place down.
func (h *GroupsHandler) HandleInsertBoulder(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req boulderRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	g, err := h.deps.InsertBoulder(r.Context(), groupID, *req.Index,
		model.Boulder{ID: req.ID, Name: req.Name, Judges: req.Judges})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// HandleRemoveBoulder handles DELETE /groups/{groupId}/boulders/{boulderId}.
func (h *GroupsHandler) HandleRemoveBoulder(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId")
	if err != nil {
		fail(w, r, err)
		return
	}
	boulderID, err := pathID(r, "boulderId")
	if err != nil {
		fail(w, r, err)
		return
	}
	g, err := h.deps.RemoveBoulder(r.Context(), groupID, boulderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleRemoveClimber handles DELETE /groups/{groupId}/climbers/{climberId}.
func (h *GroupsHandler) HandleRemoveClimber(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId")
	if err != nil {
		fail(w, r, err)
		return
	}
	climberID, err := pathID(r, "climberId")
	if err != nil {
		fail(w, r, err)
		return
	}
	g, err := h.deps.RemoveClimber(r.Context(), groupID, climberID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
