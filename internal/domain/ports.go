package domain

import (
	"context"
	"time"
)

// BookingReader is the read side the availability check needs. Both the
// repository and an open admission transaction implement it.
type BookingReader interface {
	// ActiveBookings returns the non-cancelled bookings of a property that
	// overlap [start, end).
	ActiveBookings(ctx context.Context, propertyID string, start, end time.Time) ([]Booking, error)
}

// AdmissionTx is the store's view inside an atomic check-then-insert section.
type AdmissionTx interface {
	BookingReader
	InsertBooking(ctx context.Context, b Booking) error
}

type BookingRepository interface {
	BookingReader

	// Admit locks the property, loads it (ErrNotFound if absent) and runs fn.
	// No other Admit for the same property can interleave with fn; the
	// transaction commits iff fn returns nil.
	Admit(ctx context.Context, propertyID string, fn func(ctx context.Context, tx AdmissionTx, p Property) error) error

	GetBooking(ctx context.Context, id string) (BookingView, error)
	ListBookings(ctx context.Context) ([]BookingView, error)
}

type PropertyRepository interface {
	GetProperty(ctx context.Context, id string) (Property, error)
	ListProperties(ctx context.Context) ([]Property, error)
}

type PaymentRepository interface {
	InsertPayment(ctx context.Context, p Payment) error
	GetPaymentByReference(ctx context.Context, reference string) (Payment, error)
	ListPendingPayments(ctx context.Context, limit int) ([]Payment, error)

	// Settle moves the payment pending->paid and its booking
	// pending_payment->paid in one transaction using conditional updates.
	// Re-settling is a no-op. ErrNotFound if the reference is unknown.
	Settle(ctx context.Context, reference string) (Settlement, error)
}

// Store is the process-wide persistence handle injected into the services.
type Store interface {
	BookingRepository
	PropertyRepository
	PaymentRepository
	Close() error
}

type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req InitTxRequest) (InitTxResult, error)
	VerifyTransaction(ctx context.Context, reference string) (VerifyTxResult, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
