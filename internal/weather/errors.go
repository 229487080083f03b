package weather

import (
	"errors"
	"fmt"
)

var (
	ErrTransport       = errors.New("transport error")
	ErrTimeout         = errors.New("upstream timeout")
	ErrAuth            = errors.New("credentials rejected")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstream        = errors.New("upstream error")
	ErrUpstreamFormat  = errors.New("unexpected upstream format")
	ErrBudgetExhausted = errors.New("call budget exhausted")
	ErrUnknownLocality = errors.New("unknown locality")
)

// UpstreamError tags a failure with the source that produced it and, when
// known, the HTTP status.
type UpstreamError struct {
	Source string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Source, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}
