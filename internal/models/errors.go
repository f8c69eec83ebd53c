package models

import "errors"

// ErrInvalidInput is returned by the engine for an empty ticker list or an
// unusable policy. It is the only error that escapes an analysis run; every
// other failure is recorded per ticker.
var ErrInvalidInput = errors.New("invalid input")

// ErrorKind classifies a per-ticker failure.
type ErrorKind string

const (
	ErrorKindInvalidInput    ErrorKind = "invalid_input"
	ErrorKindUpstreamFailure ErrorKind = "upstream_failure" // SEC or vendor request failed
	ErrorKindTimeout         ErrorKind = "timeout"          // shared deadline elapsed mid-stream
	ErrorKindInternal        ErrorKind = "internal"         // analysis stage panicked
)

// AnalysisError is a structured failure entry on a CompanyAnalysis. Data
// quality issues never appear here; those become warnings on the affected
// values.
type AnalysisError struct {
	Stage   string    `json:"stage"` // sec_ltm, sec_ltm_minus_1, market, ev_bridge, multiples, growth, operating
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e AnalysisError) Error() string {
	return e.Stage + ": " + e.Message
}
