package schema

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	ErrDataIntegrity      = errors.New("data integrity violation")
	ErrSourceUnavailable  = errors.New("event source unavailable")
	ErrBudgetOutOfRange   = errors.New("budget split out of range")
	ErrInvalidCalibration = errors.New("invalid scenario calibration")
	ErrUnknownModel       = errors.New("unknown attribution model")
	ErrUnknownPreset      = errors.New("unknown scenario preset")
	ErrInvalidInput       = errors.New("invalid input")
)

// DataIntegrityError describes a malformed or incomplete event record.
type DataIntegrityError struct {
	Record int    // zero-based index in the input, -1 when unknown
	Field  string // offending field
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Record < 0 {
		return fmt.Sprintf("%v: %s: %s", ErrDataIntegrity, e.Field, e.Reason)
	}
	return fmt.Sprintf("%v: record %d: %s: %s", ErrDataIntegrity, e.Record, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrDataIntegrity.
func (e *DataIntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// ReasonCode is the only failure detail a host application sees.
type ReasonCode string

// All reason codes.
const (
	ReasonDataIntegrity     ReasonCode = "data_integrity"
	ReasonSourceUnavailable ReasonCode = "source_unavailable"
	ReasonAborted           ReasonCode = "aborted"
	ReasonOutOfRange        ReasonCode = "out_of_range"
	ReasonInvalidInput      ReasonCode = "invalid_input"
	ReasonInternal          ReasonCode = "internal"
)

// Unavailable is returned to hosts instead of a raw error.
type Unavailable struct {
	Status string     `json:"status"`
	Reason ReasonCode `json:"reason"`
}

// ReasonFor maps an error to a reason code.
func ReasonFor(err error) ReasonCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDataIntegrity):
		return ReasonDataIntegrity
	case errors.Is(err, ErrSourceUnavailable):
		return ReasonSourceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonAborted
	case errors.Is(err, ErrBudgetOutOfRange):
		return ReasonOutOfRange
	case errors.Is(err, ErrInvalidCalibration), errors.Is(err, ErrUnknownModel), errors.Is(err, ErrUnknownPreset), errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	default:
		return ReasonInternal
	}
}

// NewUnavailable builds the host-facing failure for err.
func NewUnavailable(err error) Unavailable {
	return Unavailable{Status: "analysis unavailable", Reason: ReasonFor(err)}
}
