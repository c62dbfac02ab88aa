package domain

import (
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingPaid           BookingStatus = "paid"
	BookingCancelled      BookingStatus = "cancelled" // reserved for an external cancellation flow
)

// Blocking reports whether a booking in this status holds its date range.
func (s BookingStatus) Blocking() bool { return s != BookingCancelled }

// Terminal reports whether the status can no longer change.
func (s BookingStatus) Terminal() bool { return s == BookingPaid || s == BookingCancelled }

type Booking struct {
	ID          string        `json:"id"`
	PropertyID  string        `json:"propertyId"`
	StartDate   time.Time     `json:"startDate"`
	EndDate     time.Time     `json:"endDate"` // exclusive
	GuestCount  int           `json:"guestCount"`
	BasePrice   float64       `json:"basePrice"`
	ExtraCharge float64       `json:"extraCharge"`
	TaxRate     float64       `json:"taxRate"`
	TotalPrice  float64       `json:"totalPrice"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// BookingView is a booking joined with its property's public fields.
type BookingView struct {
	Booking
	Property *Property `json:"property,omitempty"`
}

const dateOnly = "2006-01-02"

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (UTC midnight).
// Timestamps are truncated to milliseconds, the precision the stores keep.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Truncate(time.Millisecond), true
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
