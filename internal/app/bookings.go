package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stayhub/internal/domain"
)

// DefaultTaxRate is recorded on bookings when no rate is configured.
const DefaultTaxRate = 7.5

type CreateBookingInput struct {
	PropertyID  string
	StartDate   string
	EndDate     string
	GuestCount  int
	ExtraCharge float64
	TotalPrice  *float64 // client-declared total, optional
}

type BookingService struct {
	repo    domain.BookingRepository
	engine  *AvailabilityEngine
	taxRate float64
	now     func() time.Time
	newID   func() string
}

func NewBookingService(r domain.BookingRepository, taxRate float64) *BookingService {
	if taxRate <= 0 {
		taxRate = DefaultTaxRate
	}
	return &BookingService{
		repo:    r,
		engine:  NewAvailabilityEngine(r),
		taxRate: taxRate,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

func (s *BookingService) Engine() *AvailabilityEngine { return s.engine }

// parseRange validates a [start,end) pair given as strings.
func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
		return time.Time{}, time.Time{}, domain.Invalid("startDate and endDate are required")
	}
	start, ok := domain.ParseDate(startDate)
	if !ok {
		return time.Time{}, time.Time{}, domain.Invalid("startDate %q is not a valid date", startDate)
	}
	end, ok := domain.ParseDate(endDate)
	if !ok {
		return time.Time{}, time.Time{}, domain.Invalid("endDate %q is not a valid date", endDate)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, domain.Invalid("invalid date range: startDate must be before endDate")
	}
	return start, end, nil
}

func (s *BookingService) CheckAvailability(ctx context.Context, propertyID, startDate, endDate string) (bool, error) {
	if strings.TrimSpace(propertyID) == "" {
		return false, domain.Invalid("propertyId is required")
	}
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return false, err
	}
	ok, err := s.engine.IsAvailable(ctx, propertyID, start, end)
	if err != nil {
		return false, domain.Internal("check availability", err)
	}
	return ok, nil
}

// CreateBooking admits a new pending_payment booking. The conflict check and
// the insert run inside one store-level admission section.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	if strings.TrimSpace(in.PropertyID) == "" || in.StartDate == "" || in.EndDate == "" {
		return domain.Booking{}, domain.Invalid("missing required fields: propertyId, startDate, endDate")
	}
	start, end, err := parseRange(in.StartDate, in.EndDate)
	if err != nil {
		return domain.Booking{}, err
	}
	guests := in.GuestCount
	if guests < 0 {
		return domain.Booking{}, domain.Invalid("guestCount must be positive")
	}
	if guests == 0 {
		guests = 1
	}

	var created domain.Booking
	err = s.repo.Admit(ctx, in.PropertyID, func(ctx context.Context, tx domain.AdmissionTx, p domain.Property) error {
		conflict, err := s.engine.HasConflict(ctx, tx, p.ID, start, end)
		if err != nil {
			return err
		}
		if conflict {
			return domain.Conflict("property not available for selected dates")
		}

		q := QuoteStay(start, end, p.PricePerNight, in.ExtraCharge, in.TotalPrice)
		if q.TotalPrice <= 0 {
			return domain.Invalid("total price must be positive")
		}

		now := s.now()
		b := domain.Booking{
			ID:          s.newID(),
			PropertyID:  p.ID,
			StartDate:   start,
			EndDate:     end,
			GuestCount:  guests,
			BasePrice:   q.BasePrice,
			ExtraCharge: q.ExtraCharge,
			TaxRate:     s.taxRate,
			TotalPrice:  q.TotalPrice,
			Status:      domain.BookingPendingPayment,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, domain.Internal("create booking", err)
	}

	log.Info().
		Str("booking", created.ID).
		Str("property", created.PropertyID).
		Time("start", created.StartDate).
		Time("end", created.EndDate).
		Float64("total", created.TotalPrice).
		Msg("booking created")
	return created, nil
}
