// Package repository stores judging results.
package repository

import (
	"context"

	"github.com/okian/crux/internal/domain/model"
)

// MutateFunc computes the next value of a result. existed is false when the
// result has never been written, in which case cur is the zero result for
// the key. Returning an error aborts the write.
type MutateFunc func(cur model.Result, existed bool) (model.Result, error)

// Mutation is one read-modify-write of a batch.
type Mutation struct {
	Key model.ResultKey
	Fn  MutateFunc
}

// Store provides read/write access to results.
type Store interface {
	// Mutate atomically applies fn to the result at key and stores the
	// outcome. Calls on the same key are serialised.
	Mutate(ctx context.Context, key model.ResultKey, fn MutateFunc) (model.Result, error)

	// MutateBatch applies every mutation of one group or none of them. A
	// mutation sees the results written by earlier mutations of the batch.
	MutateBatch(ctx context.Context, groupID int64, muts []Mutation) ([]model.Result, error)

	// Get returns ErrNotFound when the result was never written.
	Get(ctx context.Context, key model.ResultKey) (model.Result, error)

	// ListByGroup returns the results of a group ordered by climber then boulder.
	ListByGroup(ctx context.Context, groupID int64) ([]model.Result, error)

	// DeleteBoulder removes every result on a boulder and returns how many.
	DeleteBoulder(ctx context.Context, groupID, boulderID int64) (int, error)

	// DeleteClimber removes every result of a climber in a group.
	DeleteClimber(ctx context.Context, groupID, climberID int64) (int, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) (int, error)

	Close() error
}
