package domain

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Payment struct {
	ID        string        `json:"id"`
	BookingID string        `json:"bookingId"`
	Email     string        `json:"email"`
	Amount    float64       `json:"amount"`
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Settlement reports which records a verified payment actually changed.
// Both flags are false when the same reference is verified again.
type Settlement struct {
	Payment        Payment
	PaymentChanged bool
	BookingChanged bool
}

// Gateway request/response shapes. Amounts are in minor units (kobo, cents).
type InitTxRequest struct {
	AmountMinor int64
	Email       string
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

type InitTxResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyTxResult struct {
	Succeeded   bool
	Status      string // gateway's own status word, e.g. "success", "abandoned"
	Reference   string
	AmountMinor int64
	Metadata    map[string]any
	Raw         map[string]any
}
