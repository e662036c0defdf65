package catalog

import (
	"fmt"

	"github.com/okian/crux/internal/domain/model"
)

var (
	ErrNotFound    = fmt.Errorf("catalog entity %w", model.ErrNotFound)
	ErrDuplicateID = fmt.Errorf("duplicate id: %w", model.ErrInvalidInput)
)
