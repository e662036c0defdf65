package api

import (
	"net/http"

	"github.com/okian/crux/internal/domain/model"
)

// judgeRequest is the body of a single judging call.
type judgeRequest struct {
	ClimberID int64  `json:"climberId" validate:"required,gt=0"`
	Try       bool   `json:"try" validate:"required_without_all=Top Zone"`
	Top       *bool  `json:"top,omitempty"`
	Zone      *bool  `json:"zone,omitempty"`
	RequestID string `json:"requestId,omitempty" validate:"max=128"`
}

// bulkRequest is the body of a bulk result edit.
type bulkRequest struct {
	RequestID string             `json:"requestId,omitempty" validate:"max=128"`
	Results   []bulkEntryRequest `json:"results" validate:"required,min=1,dive"`
}

type bulkEntryRequest struct {
	ClimberID   int64         `json:"climberId" validate:"required,gt=0"`
	BoulderID   int64         `json:"boulderId" validate:"required,gt=0"`
	Type        *model.Format `json:"type,omitempty"`
	Top         *bool         `json:"top,omitempty"`
	Zone        *bool         `json:"zone,omitempty"`
	TopInTries  *int          `json:"topInTries,omitempty" validate:"omitempty,gte=0"`
	ZoneInTries *int          `json:"zoneInTries,omitempty" validate:"omitempty,gte=0"`
}

type judgeResponse struct {
	Status    string       `json:"status"`
	Duplicate bool         `json:"duplicate"`
	Result    model.Result `json:"result"`
}

type bulkResponse struct {
	Status    string         `json:"status"`
	Duplicate bool           `json:"duplicate"`
	Results   []model.Result `json:"results"`
}

func status(duplicate bool) string {
	if duplicate {
		return "duplicate"
	}
	return "applied"
}

// ResultsHandler serves judging writes and result reads.
type ResultsHandler struct {
	deps JudgingDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps JudgingDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// HandleJudge handles POST /groups/{groupId}/boulders/{boulderId}/results.
func (h *ResultsHandler) HandleJudge(w http.ResponseWriter, r *http.Request) {
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
	var req judgeRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	res, dup, err := h.deps.Judge(r.Context(), model.JudgingInput{
		RequestID: req.RequestID,
		Key:       model.ResultKey{GroupID: groupID, BoulderID: boulderID, ClimberID: req.ClimberID},
		Try:       req.Try,
		Top:       req.Top,
		Zone:      req.Zone,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, judgeResponse{Status: status(dup), Duplicate: dup, Result: res})
}

// HandleBulk handles POST /groups/{groupId}/bulk-results.
func (h *ResultsHandler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req bulkRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}

	entries := make([]model.BulkEntry, len(req.Results))
	for i, e := range req.Results {
		entries[i] = model.BulkEntry{
			ClimberID:   e.ClimberID,
			BoulderID:   e.BoulderID,
			Type:        e.Type,
			Top:         e.Top,
			Zone:        e.Zone,
			TopInTries:  e.TopInTries,
			ZoneInTries: e.ZoneInTries,
		}
	}
	out, dup, err := h.deps.BulkJudge(r.Context(), groupID, req.RequestID, entries)
	if err != nil {
		fail(w, r, err)
		return
	}
	if out == nil {
		out = []model.Result{}
	}
	writeJSON(w, http.StatusOK, bulkResponse{Status: status(dup), Duplicate: dup, Results: out})
}

// HandleList handles GET /groups/{groupId}/results. With both climberId and
// boulderId set it returns that single result, zero valued when never judged.
func (h *ResultsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId")
	if err != nil {
		fail(w, r, err)
		return
	}
	climberID, err := queryID(r, "climberId")
	if err != nil {
		fail(w, r, err)
		return
	}
	boulderID, err := queryID(r, "boulderId")
	if err != nil {
		fail(w, r, err)
		return
	}

	if climberID != 0 && boulderID != 0 {
		res, err := h.deps.Result(r.Context(), model.ResultKey{GroupID: groupID, BoulderID: boulderID, ClimberID: climberID})
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	list, err := h.deps.Results(r.Context(), groupID, climberID, boulderID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.Result{}
	}
	writeJSON(w, http.StatusOK, list)
}
