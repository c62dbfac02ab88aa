package app

import (
	"context"
	"time"

	"stayhub/internal/domain"
)

// Overlaps reports whether [s1,e1) and [s2,e2) share at least one instant.
// Touching ranges (e1 == s2) do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

type AvailabilityEngine struct {
	bookings domain.BookingReader
}

func NewAvailabilityEngine(r domain.BookingReader) *AvailabilityEngine {
	return &AvailabilityEngine{bookings: r}
}

// HasConflict checks [start,end) against the blocking bookings visible
// through r. Pass the admission transaction to evaluate inside the lock.
func (e *AvailabilityEngine) HasConflict(ctx context.Context, r domain.BookingReader, propertyID string, start, end time.Time) (bool, error) {
	if r == nil {
		r = e.bookings
	}
	existing, err := r.ActiveBookings(ctx, propertyID, start, end)
	if err != nil {
		return false, err
	}
	for _, b := range existing {
		if !b.Status.Blocking() {
			continue
		}
		if Overlaps(b.StartDate, b.EndDate, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (e *AvailabilityEngine) IsAvailable(ctx context.Context, propertyID string, start, end time.Time) (bool, error) {
	conflict, err := e.HasConflict(ctx, nil, propertyID, start, end)
	if err != nil {
		return false, err
	}
	return !conflict, nil
}
