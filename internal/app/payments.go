package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stayhub/internal/domain"
)

var validate = validator.New()

// BookingInvalidator is notified when a booking's status changed.
type BookingInvalidator interface {
	InvalidateBooking(ctx context.Context, id string)
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
}

type VerifyResult struct {
	Succeeded bool           `json:"succeeded"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
	Payment   domain.Payment `json:"payment"`
}

type PaymentService struct {
	bookings    domain.BookingRepository
	payments    domain.PaymentRepository
	gateway     domain.PaymentGateway
	callbackURL string
	inv         BookingInvalidator
	now         func() time.Time
	newID       func() string
}

func NewPaymentService(b domain.BookingRepository, p domain.PaymentRepository, gw domain.PaymentGateway, callbackURL string, inv BookingInvalidator) *PaymentService {
	return &PaymentService{
		bookings:    b,
		payments:    p,
		gateway:     gw,
		callbackURL: callbackURL,
		inv:         inv,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// NewReference builds a gateway reference tied to the booking. Every call
// yields a fresh value, so each initialization attempt is distinct.
func NewReference(bookingID string) string {
	return fmt.Sprintf("BOOK_%s_%s", bookingID, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// InitializePayment starts a gateway transaction for the booking's stored
// total. The payment record is written only after the gateway accepted it.
func (s *PaymentService) InitializePayment(ctx context.Context, bookingID, payerEmail string) (InitializeResult, error) {
	bookingID = strings.TrimSpace(bookingID)
	payerEmail = strings.TrimSpace(payerEmail)
	if bookingID == "" || payerEmail == "" {
		return InitializeResult{}, domain.Invalid("bookingId and payerEmail are required")
	}
	if err := validate.Var(payerEmail, "email"); err != nil {
		return InitializeResult{}, domain.Invalid("payerEmail %q is not a valid address", payerEmail)
	}
	if !ValidBookingID(bookingID) {
		return InitializeResult{}, domain.Invalid("invalid booking id %q", bookingID)
	}

	bv, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return InitializeResult{}, domain.Internal("load booking", err)
	}
	if bv.Status != domain.BookingPendingPayment {
		return InitializeResult{}, domain.Conflict("booking %s is %s", bv.ID, bv.Status)
	}

	amount := bv.TotalPrice
	res, err := s.gateway.InitializeTransaction(ctx, domain.InitTxRequest{
		AmountMinor: MinorUnits(amount),
		Email:       payerEmail,
		Reference:   NewReference(bv.ID),
		CallbackURL: s.callbackURL,
		Metadata:    map[string]string{"bookingId": bv.ID},
	})
	if err != nil {
		log.Warn().Err(err).Str("booking", bv.ID).Msg("gateway initialize failed")
		if domain.KindOf(err) == domain.KindUpstream {
			return InitializeResult{}, err
		}
		return InitializeResult{}, domain.Upstream("initialize transaction", err)
	}

	now := s.now()
	p := domain.Payment{
		ID:        s.newID(),
		BookingID: bv.ID,
		Email:     payerEmail,
		Amount:    amount,
		Reference: res.Reference,
		Status:    domain.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.InsertPayment(ctx, p); err != nil {
		return InitializeResult{}, domain.Internal("insert payment", err)
	}

	log.Info().
		Str("booking", bv.ID).
		Str("reference", p.Reference).
		Float64("amount", amount).
		Msg("payment initialized")
	return InitializeResult{AuthorizationURL: res.AuthorizationURL, Reference: res.Reference}, nil
}

// VerifyPayment asks the gateway about reference and, on success, settles
// the payment and its booking. Safe to call any number of times.
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string) (VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResult{}, domain.Invalid("reference is required")
	}

	// unknown references never reach the gateway or the booking
	p, err := s.payments.GetPaymentByReference(ctx, reference)
	if err != nil {
		return VerifyResult{}, domain.Internal("load payment", err)
	}

	res, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		log.Warn().Err(err).Str("reference", reference).Msg("gateway verify failed")
		if domain.KindOf(err) == domain.KindUpstream {
			return VerifyResult{}, err
		}
		return VerifyResult{}, domain.Upstream("verify transaction", err)
	}

	out := VerifyResult{Status: res.Status, Details: res.Raw, Payment: p}
	if !res.Succeeded {
		log.Info().Str("reference", reference).Str("status", res.Status).Msg("payment not successful")
		return out, nil
	}
	if res.AmountMinor != 0 && res.AmountMinor != MinorUnits(p.Amount) {
		log.Warn().
			Str("reference", reference).
			Int64("expected", MinorUnits(p.Amount)).
			Int64("got", res.AmountMinor).
			Msg("gateway amount mismatch")
		out.Status = "amount_mismatch"
		return out, nil
	}

	st, err := s.payments.Settle(ctx, reference)
	if err != nil {
		return VerifyResult{}, domain.Internal("settle payment", err)
	}
	if s.inv != nil {
		s.inv.InvalidateBooking(ctx, st.Payment.BookingID)
	}

	log.Info().
		Str("reference", reference).
		Str("booking", st.Payment.BookingID).
		Bool("payment_changed", st.PaymentChanged).
		Bool("booking_changed", st.BookingChanged).
		Msg("payment settled")

	out.Succeeded = true
	out.Payment = st.Payment
	return out, nil
}

// ListPending returns payments still awaiting verification.
func (s *PaymentService) ListPending(ctx context.Context, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	out, err := s.payments.ListPendingPayments(ctx, limit)
	if err != nil {
		return nil, domain.Internal("list pending payments", err)
	}
	return out, nil
}
