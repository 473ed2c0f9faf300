package domain

import (
	"errors"
	"fmt"
)

// ErrNoSchedule is returned by the provider client when the remote
// side signals that no schedule exists for a station/day (the provider
// uses a sentinel digest for this). Such days are counted as invalid
// and never get an index row.
var ErrNoSchedule = errors.New("no schedule for station/day")

// TransportError indicates the provider is unreachable or failing
// wholesale (connection error, 5xx). At the top of a run it is fatal;
// the reconciler never retries it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError indicates bad or expired credentials, or an expired
// account. Always fatal to the run.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UnitFetchError indicates a single unit (one lineup, one station-day,
// one program) could not be fetched. The unit stays at its previous
// cached state and the run continues.
type UnitFetchError struct {
	Unit string
	Err  error
}

func (e *UnitFetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Unit, e.Err)
}

func (e *UnitFetchError) Unwrap() error { return e.Err }

// DataIntegrityError indicates a remote payload was missing expected
// fields. Treated exactly like a UnitFetchError for the affected unit.
type DataIntegrityError struct {
	Unit   string
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("malformed payload for %s: %s", e.Unit, e.Detail)
}

// IsRunFatal reports whether an error must abort the whole run rather
// than just its unit.
func IsRunFatal(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
