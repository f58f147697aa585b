package errdefs

import (
	"errors"
	"fmt"
)

// Sentinel errors for every expected business failure in the scheduling and
// reservation core. Callers match with errors.Is; messages are wrapped with
// context at the call site.
var (
	// ErrInvalidTimeRange indicates a range whose start is not before its end.
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrPastStartTime indicates a reservation starting in the past.
	ErrPastStartTime = errors.New("start time is in the past")

	// ErrNotFound indicates an unknown reservation, window, job, or node id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStateTransition indicates a lifecycle operation applied in
	// the wrong state, such as confirming a non-REQUESTED reservation or
	// activating outside the reservation window.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrMissingAllocations indicates a confirm attempt on a reservation
	// with no resource allocations.
	ErrMissingAllocations = errors.New("reservation has no allocations")

	// ErrNonPreemptible indicates a preempt attempt on a reservation that is
	// either not ACTIVE or not marked preemptible.
	ErrNonPreemptible = errors.New("reservation is not preemptible")

	// ErrUnresolvableConflict indicates conflict resolution failed and the
	// triggering operation was rolled back.
	ErrUnresolvableConflict = errors.New("unresolvable conflict")
)

// NotFound wraps ErrNotFound with the kind and id of the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// InvalidTransition wraps ErrInvalidStateTransition with the attempted
// operation and the state it was attempted from.
func InvalidTransition(op, state string) error {
	return fmt.Errorf("cannot %s reservation in state %s: %w", op, state, ErrInvalidStateTransition)
}
