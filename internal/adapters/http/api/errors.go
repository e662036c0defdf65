package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/crux/internal/app"
	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/pkg/logger"
	"github.com/okian/crux/pkg/metrics"
)

// ErrBadRequest marks requests rejected before reaching the service.
var ErrBadRequest = errors.New("bad request")

// statusFor maps an error to its HTTP status and response code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrMembership):
		return http.StatusUnprocessableEntity, "membership"
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, model.ErrCapacityExceeded):
		return http.StatusConflict, "capacity_exceeded"
	case errors.Is(err, model.ErrFormatMismatch):
		return http.StatusConflict, "format_mismatch"
	case errors.Is(err, model.ErrGroupNotOngoing):
		return http.StatusConflict, "group_not_ongoing"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// fail writes err with the status its kind maps to.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		metrics.RecordErrorByComponent("api", code)
		logger.Get().Named("api").Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path), logger.Error(err))
	}
	writeError(w, status, code, err)
}
