package api

import (
	"fmt"
	"net/http"

	"github.com/okian/crux/internal/domain/model"
)

// RankingsHandler serves ranking reads.
type RankingsHandler struct {
	deps RankingDependencies
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingDependencies) *RankingsHandler {
	return &RankingsHandler{deps: deps}
}

// HandleGetRankings handles GET /rankings?scope=group:1&format=CIRCUIT.
// format is optional; when given it must match the scope's ranking type.
func (h *RankingsHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope, err := model.ParseScope(q.Get("scope"))
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	format := model.FormatUnknown
	if v := q.Get("format"); v != "" {
		if format, err = model.ParseFormat(v); err != nil {
			fail(w, r, fmt.Errorf("%w: %w", ErrBadRequest, err))
			return
		}
	}

	ev, err := h.deps.Rankings(r.Context(), scope, format)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
