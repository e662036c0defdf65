// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Format is the scoring format of a round. It is a closed set: every switch
// over a Format handles all three variants.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatCircuit
	FormatLimitedContest
	FormatUnlimitedContest
)

var formatNames = [...]string{
	FormatUnknown:          "",
	FormatCircuit:          "CIRCUIT",
	FormatLimitedContest:   "LIMITED_CONTEST",
	FormatUnlimitedContest: "UNLIMITED_CONTEST",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Valid reports whether f is one of the three scoring formats.
func (f Format) Valid() bool {
	return f >= FormatCircuit && f <= FormatUnlimitedContest
}

// CountsTries reports whether attempts are tracked for this format.
func (f Format) CountsTries() bool {
	return f == FormatCircuit || f == FormatLimitedContest
}

// CountsZones reports whether zones are scored for this format.
func (f Format) CountsZones() bool {
	return f == FormatCircuit || f == FormatLimitedContest
}

// ParseFormat parses the wire name of a format (case-insensitive).
func ParseFormat(s string) (Format, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range formatNames {
		if n != "" && n == name {
			return Format(i), nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown ranking type %q: %w", s, ErrInvalidInput)
}

func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("marshal %s: %w", f, ErrInvalidInput)
	}
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
