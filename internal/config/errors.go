package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is the kind of every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig is returned when a source cannot be read or decoded.
	ErrLoadConfig = errors.New("load config failed")

	// ErrUnknownStore is returned for a store other than memory or postgres.
	ErrUnknownStore = fmt.Errorf("%w: unknown store", ErrInvalidConfig)
	// ErrMissingDSN is returned when the postgres store has no DSN.
	ErrMissingDSN = fmt.Errorf("%w: postgres_dsn is required for the postgres store", ErrInvalidConfig)
)
