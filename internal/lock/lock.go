// Package lock serializes check-then-write sequences that share a key,
// such as a venue slot or a parking day.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAcquired is returned when the wait for a key exceeds the locker's budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive access per key. The returned release func must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// BookingKey guards a single venue slot.
func BookingKey(venueID, date, startTime string) string {
	return fmt.Sprintf("booking:%s:%s:%s", venueID, date, startTime)
}

// ParkingKey guards the reservation capacity of one day.
func ParkingKey(date string) string {
	return fmt.Sprintf("parking:%s", date)
}

// With runs fn while holding key.
func With(ctx context.Context, l Locker, key string, fn func() error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
