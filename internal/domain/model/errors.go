package model

import "errors"

// Error kinds surfaced to callers. Specific errors below wrap one of them so
// callers can branch with errors.Is on the kind.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrMembership        = errors.New("membership violation")
	ErrFormatMismatch    = errors.New("format mismatch")
	ErrNotFound          = errors.New("not found")
	ErrGroupNotOngoing   = errors.New("group is not ongoing")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Specific judging errors.
var (
	ErrNoJudgingField        = kind(ErrInvalidInput, "one of try, top or zone is required")
	ErrTriesNotCounted       = kind(ErrInvalidInput, "tries are not counted for this ranking type")
	ErrZoneNotCounted        = kind(ErrInvalidInput, "zones are not counted for this ranking type")
	ErrIncoherentTopInTries  = kind(ErrInvalidInput, "incoherent top in tries")
	ErrIncoherentZoneInTries = kind(ErrInvalidInput, "incoherent zone in tries")
	ErrWrongResultType       = kind(ErrInvalidInput, "result type does not match the round ranking type")
	ErrMaxTriesReached       = kind(ErrCapacityExceeded, "max tries reached")
	ErrClimberNotInGroup     = kind(ErrMembership, "climber not in group")
	ErrBoulderNotInGroup     = kind(ErrMembership, "boulder not in group")
)

type kindError struct {
	kind error
	msg  string
}

func kind(k error, msg string) error { return &kindError{kind: k, msg: msg} }

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
