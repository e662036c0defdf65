// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
)

// JudgingDependencies are the result operations used by the judging handlers.
type JudgingDependencies interface {
	Judge(ctx context.Context, in model.JudgingInput) (model.Result, bool, error)
	BulkJudge(ctx context.Context, groupID int64, requestID string, entries []model.BulkEntry) ([]model.Result, bool, error)
	Result(ctx context.Context, key model.ResultKey) (model.Result, error)
	Results(ctx context.Context, groupID, climberID, boulderID int64) ([]model.Result, error)
}

// RankingDependencies serve ranking reads.
type RankingDependencies interface {
	Rankings(ctx context.Context, scope model.Scope, format model.Format) (types.RankingEvent, error)
}

// GroupDependencies read and change group metadata.
type GroupDependencies interface {
	Group(ctx context.Context, groupID int64) (model.Group, error)
	Round(ctx context.Context, roundID int64) (model.Round, error)
	SetGroupState(ctx context.Context, groupID int64, state model.GroupState) (model.Group, error)
	InsertBoulder(ctx context.Context, groupID int64, index int, b model.Boulder) (model.Group, error)
	RemoveBoulder(ctx context.Context, groupID, boulderID int64) (model.Group, error)
	RemoveClimber(ctx context.Context, groupID, climberID int64) (model.Group, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	JudgingDependencies
	RankingDependencies
	GroupDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	opsHandler      *OpsHandler
	resultsHandler  *ResultsHandler
	rankingsHandler *RankingsHandler
	groupsHandler   *GroupsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		opsHandler:      NewOpsHandler(statsProvider),
		resultsHandler:  NewResultsHandler(deps),
		rankingsHandler: NewRankingsHandler(deps),
		groupsHandler:   NewGroupsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.opsHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.opsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /groups/{groupId}/boulders/{boulderId}/results",
		MetricsMiddleware(s.resultsHandler.HandleJudge, "judge"))
	mux.HandleFunc("POST /groups/{groupId}/bulk-results",
		MetricsMiddleware(s.resultsHandler.HandleBulk, "bulk_judge"))
	mux.HandleFunc("GET /groups/{groupId}/results",
		MetricsMiddleware(s.resultsHandler.HandleList, "results"))

	mux.HandleFunc("GET /rankings", MetricsMiddleware(s.rankingsHandler.HandleGetRankings, "rankings"))

	mux.HandleFunc("GET /groups/{groupId}", MetricsMiddleware(s.groupsHandler.HandleGetGroup, "group"))
	mux.HandleFunc("GET /rounds/{roundId}", MetricsMiddleware(s.groupsHandler.HandleGetRound, "round"))
	mux.HandleFunc("PUT /groups/{groupId}/state",
		MetricsMiddleware(s.groupsHandler.HandleSetState, "group_state"))
	mux.HandleFunc("POST /groups/{groupId}/boulders",
		MetricsMiddleware(s.groupsHandler.HandleInsertBoulder, "insert_boulder"))
	mux.HandleFunc("DELETE /groups/{groupId}/boulders/{boulderId}",
		MetricsMiddleware(s.groupsHandler.HandleRemoveBoulder, "remove_boulder"))
	mux.HandleFunc("DELETE /groups/{groupId}/climbers/{climberId}",
		MetricsMiddleware(s.groupsHandler.HandleRemoveClimber, "remove_climber"))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %w", ErrBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// pathID reads a positive id from the named path segment.
func pathID(r *http.Request, name string) (int64, error) {
	return parseID(name, r.PathValue(name), true)
}

// queryID reads an optional positive id from the query string; absent is 0.
func queryID(r *http.Request, name string) (int64, error) {
	return parseID(name, r.URL.Query().Get(name), false)
}

func parseID(name, raw string, required bool) (int64, error) {
	if raw == "" && !required {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrBadRequest, name)
	}
	return id, nil
}
