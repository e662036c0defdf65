package testjudging

import "errors"

var (
	// ErrUnexpectedStatus is returned when the service answers outside 2xx.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrEmptyGroup is returned when the group has no boulders or no climbers.
	ErrEmptyGroup = errors.New("group has no boulders or climbers")
	// ErrGroupClosed is returned when the group does not accept results.
	ErrGroupClosed = errors.New("group is not ongoing")
	// ErrResultsMismatch is returned when served results differ from the replay.
	ErrResultsMismatch = errors.New("served results differ from the local replay")
	// ErrRankingsMismatch is returned when the served ranking differs from the
	// ranking computed locally from the served results.
	ErrRankingsMismatch = errors.New("served ranking differs from the local ranking")
)
