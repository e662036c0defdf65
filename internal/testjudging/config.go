package testjudging

import (
	"time"

	"github.com/okian/crux/internal/domain/model"
)

// Config holds configuration for the judging load test
type Config struct {
	BaseURL    string        // Base URL of the service
	GroupID    int64         // Group receiving the calls
	Calls      int           // Number of judging calls to generate
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Generator seed; 0 derives one from the clock
	DupRate    float64       // Share of calls resubmitted with an earlier request id
	Open       bool          // Move a PENDING group to ONGOING before submitting
	Tolerance  float64       // UNLIMITED_CONTEST tie tolerance used for the local ranking
	OutputFile string        // Output file for calls
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// Call is one judging call sent to the service.
type Call struct {
	Seq       int    `json:"seq"`
	ClimberID int64  `json:"climberId"`
	BoulderID int64  `json:"boulderId"`
	Try       bool   `json:"try,omitempty"`
	Top       *bool  `json:"top,omitempty"`
	Zone      *bool  `json:"zone,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Key returns the result the call writes.
func (c Call) Key(groupID int64) model.ResultKey {
	return model.ResultKey{GroupID: groupID, BoulderID: c.BoulderID, ClimberID: c.ClimberID}
}

// Input converts the call to the domain judging input.
func (c Call) Input(groupID int64) model.JudgingInput {
	return model.JudgingInput{
		RequestID: c.RequestID,
		Key:       c.Key(groupID),
		Try:       c.Try,
		Top:       c.Top,
		Zone:      c.Zone,
	}
}

// Outcome is how the service answered a call.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Stats holds test statistics
type Stats struct {
	CallsGenerated int
	CallsSubmitted int
	CallsApplied   int
	CallsDuplicate int
	CallsRejected  int
	CallsFailed    int
	ResultsChecked int
	RankedClimbers int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
