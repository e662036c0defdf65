// Package judging applies judge inputs to a single result.
//
// Every function here is pure: it takes the current result and returns the
// next one, so the caller decides when (and whether) it is persisted.
package judging

import (
	"fmt"

	"github.com/okian/crux/internal/domain/model"
)

// Rules are the round settings a result is judged under.
type Rules struct {
	Format   model.Format
	MaxTries int // LIMITED_CONTEST only; 0 means uncapped
}

func (r Rules) capped() bool {
	return r.Format == model.FormatLimitedContest && r.MaxTries > 0
}

// Apply runs one judging input against cur. Rules are applied in order:
// try, then top, then zone. On error cur is returned unchanged.
func Apply(cur model.Result, rules Rules, in model.JudgingInput) (model.Result, error) {
	if !rules.Format.Valid() {
		return cur, fmt.Errorf("apply: ranking type %s: %w", rules.Format, model.ErrFormatMismatch)
	}
	if !in.HasField() {
		return cur, model.ErrNoJudgingField
	}
	if in.Try && !rules.Format.CountsTries() {
		return cur, fmt.Errorf("apply %s: %w", rules.Format, model.ErrTriesNotCounted)
	}
	if in.Zone != nil && !rules.Format.CountsZones() {
		return cur, fmt.Errorf("apply %s: %w", rules.Format, model.ErrZoneNotCounted)
	}

	next := cur
	if in.Try {
		if rules.capped() && next.Tries >= rules.MaxTries {
			return cur, fmt.Errorf("apply: %d/%d tries: %w", next.Tries, rules.MaxTries, model.ErrMaxTriesReached)
		}
		next.Tries++
	}

	zone := in.Zone
	if in.Top != nil {
		next.Top = *in.Top
		if rules.Format.CountsTries() {
			next.TopInTries = 0
			if next.Top {
				next.TopInTries = next.Tries
			}
		}
		// a top carries the zone unless the judge said otherwise
		if next.Top && !next.Zone && zone == nil && rules.Format.CountsZones() {
			granted := true
			zone = &granted
		}
	}

	if zone != nil {
		next.Zone = *zone
		if next.Zone {
			next.ZoneInTries = next.Tries
		} else {
			next.Top = false
			next.TopInTries = 0
			next.ZoneInTries = 0
		}
	}
	return next, nil
}

// ApplyBulk overwrites cur with the absolute values of a bulk entry, fills the
// implied fields and checks the result is coherent.
func ApplyBulk(cur model.Result, rules Rules, e model.BulkEntry) (model.Result, error) {
	if !rules.Format.Valid() {
		return cur, fmt.Errorf("bulk: ranking type %s: %w", rules.Format, model.ErrFormatMismatch)
	}
	if e.Type != nil && *e.Type != rules.Format {
		return cur, fmt.Errorf("bulk: %s result in %s round: %w", *e.Type, rules.Format, model.ErrWrongResultType)
	}
	if !e.HasField() {
		return cur, model.ErrNoJudgingField
	}

	if rules.Format == model.FormatUnlimitedContest {
		if e.Zone != nil || e.ZoneInTries != nil {
			return cur, fmt.Errorf("bulk: %w", model.ErrZoneNotCounted)
		}
		if e.TopInTries != nil {
			return cur, fmt.Errorf("bulk: %w", model.ErrTriesNotCounted)
		}
		next := cur
		next.Top = *e.Top
		return next, nil
	}

	next := cur
	if e.Top != nil {
		next.Top = *e.Top
		if !next.Top && e.TopInTries == nil {
			next.TopInTries = 0
		}
	}
	if e.TopInTries != nil {
		next.TopInTries = *e.TopInTries
	}
	if e.Zone != nil {
		next.Zone = *e.Zone
		if !next.Zone {
			if e.Top == nil {
				next.Top = false
				next.TopInTries = 0
			}
			if e.ZoneInTries == nil {
				next.ZoneInTries = 0
			}
		}
	} else if next.Top && !next.Zone {
		next.Zone = true
		if e.ZoneInTries == nil {
			next.ZoneInTries = next.TopInTries
		}
	}
	if e.ZoneInTries != nil {
		next.ZoneInTries = *e.ZoneInTries
	}

	if err := coherent(next); err != nil {
		return cur, err
	}

	next.Tries = max(next.Tries, next.TopInTries, next.ZoneInTries)
	if rules.capped() && next.Tries > rules.MaxTries {
		return cur, fmt.Errorf("bulk: %d/%d tries: %w", next.Tries, rules.MaxTries, model.ErrMaxTriesReached)
	}
	return next, nil
}

func coherent(r model.Result) error {
	switch {
	case r.TopInTries < 0 || (r.TopInTries > 0 && !r.Top):
		return model.ErrIncoherentTopInTries
	case r.ZoneInTries < 0 || (r.ZoneInTries > 0 && !r.Zone):
		return model.ErrIncoherentZoneInTries
	case r.Top && !r.Zone:
		return model.ErrIncoherentZoneInTries
	case r.Top && r.TopInTries > 0 && r.ZoneInTries > r.TopInTries:
		return model.ErrIncoherentZoneInTries
	}
	return nil
}
