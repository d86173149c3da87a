package zoo

import (
	"errors"
	"fmt"
	"time"
)

// Outcome errors returned to the command layer. The first four are expected
// results of user actions; the rest are operational.
var (
	ErrNotFound            = errors.New("not found")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrCooldownActive      = errors.New("cooldown active")
	ErrBirdsAsleep         = errors.New("birds are asleep")
	ErrDuplicateState      = errors.New("duplicate state")
	ErrPersistence         = errors.New("persistence failure")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// CapacityError reports a full area. Queued is set when the request was
// placed on the admission queue instead.
type CapacityError struct {
	Area          Habitat
	Queued        bool
	QueuePosition int
}

func (e *CapacityError) Error() string {
	if e.Queued {
		return fmt.Sprintf("%s is full: queued at position %d", e.Area, e.QueuePosition)
	}
	return fmt.Sprintf("%s is full", e.Area)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// CooldownError reports when the same user may feed the same bird again.
type CooldownError struct {
	NextEligibleAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active until %s", e.NextEligibleAt.Format(time.RFC3339))
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// IsExpected reports whether err is a user-facing outcome rather than a fault.
func IsExpected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrCooldownActive) ||
		errors.Is(err, ErrBirdsAsleep)
}
