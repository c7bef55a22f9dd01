package models

import (
	"errors"
	"fmt"
)

// AuthenticationError covers credential rejection, missing login UI elements,
// and failure to obtain a session cookie. Fatal to the current run.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// NetworkError covers engine startup failures and navigations that could not
// complete. Fatal to the current run.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrClaimNotFound marks an unresolved cross-reference: the rejection's claim
// number did not resolve through a claim search. Recorded as skipped, never
// surfaced as a run error.
var ErrClaimNotFound = errors.New("claim not found")

// ErrSyncInProgress is returned when a manual trigger or timer tick arrives
// while a run is already executing.
var ErrSyncInProgress = errors.New("sync already in progress")

// IsRunFatal reports whether err must fail the whole run rather than be
// absorbed into the per-record error list.
func IsRunFatal(err error) bool {
	var authErr *AuthenticationError
	var netErr *NetworkError
	return errors.As(err, &authErr) || errors.As(err, &netErr)
}
