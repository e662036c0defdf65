package model

// ResultKey identifies the single result a climber has on a boulder of a group.
type ResultKey struct {
	GroupID   int64 `json:"groupId"`
	BoulderID int64 `json:"boulderId"`
	ClimberID int64 `json:"climberId"`
}

// Result is the mutable unit written by judges.
type Result struct {
	ResultKey
	Top         bool `json:"top"`
	TopInTries  int  `json:"topInTries"`
	Zone        bool `json:"zone"`
	ZoneInTries int  `json:"zoneInTries"`
	Tries       int  `json:"tries"`
}

// JudgingInput is one judging call on a single result.
// Nil pointers mean the field was not sent.
type JudgingInput struct {
	RequestID string // optional idempotency key
	Key       ResultKey
	Try       bool
	Top       *bool
	Zone      *bool
}

// HasField reports whether at least one of try, top or zone is present.
func (in JudgingInput) HasField() bool {
	return in.Try || in.Top != nil || in.Zone != nil
}

// BulkEntry sets absolute values on one result inside a bulk judging call.
type BulkEntry struct {
	ClimberID   int64   `json:"climberId"`
	BoulderID   int64   `json:"boulderId"`
	Type        *Format `json:"type,omitempty"`
	Top         *bool   `json:"top,omitempty"`
	Zone        *bool   `json:"zone,omitempty"`
	TopInTries  *int    `json:"topInTries,omitempty"`
	ZoneInTries *int    `json:"zoneInTries,omitempty"`
}

// HasField reports whether the entry carries anything to apply.
func (e BulkEntry) HasField() bool {
	return e.Top != nil || e.Zone != nil || e.TopInTries != nil || e.ZoneInTries != nil
}
