package repository

import (
	"errors"
	"fmt"

	"github.com/okian/crux/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = fmt.Errorf("result %w", model.ErrNotFound)
	ErrInvalidBatch = fmt.Errorf("batch mixes groups: %w", model.ErrInvalidInput)
	ErrClosed       = errors.New("store closed")
)

// BatchError reports which mutation of a batch failed. Nothing of the batch
// was written.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string { return fmt.Sprintf("batch entry %d: %v", e.Index, e.Err) }
func (e *BatchError) Unwrap() error { return e.Err }
