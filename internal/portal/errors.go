package portal

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned by the broker when no RPC response arrives within
// the configured wait.
var ErrTimeout = errors.New("portal: request timed out")

// ErrSnapshotIntegrity is returned by the diff engine when an identifier seen
// in the old snapshot is missing from the new one. Old items never disappear
// for a valid comparison; their absence means the baseline is stale.
var ErrSnapshotIntegrity = errors.New("portal: old item missing from new snapshot")

// StatusError is an HTTP-level failure reported by the remote request worker.
// Raw carries the upstream body only for server-side (>= 500) failures, so
// client-side responses never leak session content into logs or alerts.
type StatusError struct {
	Status int
	Raw    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("portal: upstream status %d", e.Status)
}

// ClientSide reports whether the failure indicates a client-side condition
// (e.g. an expired session) rather than a portal outage.
func (e *StatusError) ClientSide() bool {
	return e.Status >= 400 && e.Status < 500
}

// ParseError means fetched content could not be interpreted into the expected
// snapshot shape.
type ParseError struct {
	Resource string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("portal: cannot parse %s data", e.Resource)
	}
	return fmt.Sprintf("portal: cannot parse %s data: %v", e.Resource, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsCheckFailure reports whether err marks the checked resource as currently
// unusable for the user. These errors feed the per-user failure accounting;
// anything else is unexpected and surfaces at the scheduler boundary.
func IsCheckFailure(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	var pe *ParseError
	return errors.As(err, &se) ||
		errors.As(err, &pe) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrSnapshotIntegrity)
}
