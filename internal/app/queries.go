package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"stayhub/internal/domain"
)

type QueryRepository interface {
	domain.BookingRepository
	domain.PropertyRepository
}

type QueryService struct {
	repo     QueryRepository
	cache    domain.Cache
	cacheTTL time.Duration
	group    singleflight.Group
}

func NewQueryService(r QueryRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func bookingKey(id string) string  { return "booking:" + id }
func propertyKey(id string) string { return "property:" + id }

// ValidBookingID reports whether id has the shape of a booking identifier.
func ValidBookingID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *QueryService) GetBooking(ctx context.Context, id string) (domain.BookingView, error) {
	if !ValidBookingID(id) {
		return domain.BookingView{}, domain.Invalid("invalid booking id %q", id)
	}
	key := bookingKey(id)
	var bv domain.BookingView
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &bv); ok && bv.Status.Terminal() {
			return bv, nil
		}
	}

	// Concurrent misses share one store read. The fill runs detached from
	// any single caller so one cancelled request cannot fail the others.
	ch := s.group.DoChan(key, func() (any, error) {
		fillCtx := context.WithoutCancel(ctx)
		got, err := s.repo.GetBooking(fillCtx, id)
		if err != nil {
			return domain.BookingView{}, err
		}
		// only terminal views are cached: a pending view may be settled
		// between this read and the Set, and would outlive the Del
		if s.cache != nil && got.Status.Terminal() {
			_ = s.cache.Set(fillCtx, key, got, int(s.cacheTTL.Seconds()))
		}
		return got, nil
	})
	select {
	case <-ctx.Done():
		return domain.BookingView{}, domain.Internal("get booking", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.BookingView{}, domain.Internal("get booking", res.Err)
		}
		return res.Val.(domain.BookingView), nil
	}
}

// ListBookings returns every booking in storage order. Not cached.
func (s *QueryService) ListBookings(ctx context.Context) ([]domain.BookingView, error) {
	out, err := s.repo.ListBookings(ctx)
	if err != nil {
		return nil, domain.Internal("list bookings", err)
	}
	if out == nil {
		out = []domain.BookingView{}
	}
	return out, nil
}

func (s *QueryService) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Property{}, domain.Invalid("property id is required")
	}
	key := propertyKey(id)
	var p domain.Property
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &p); ok {
			return p, nil
		}
	}
	p, err := s.repo.GetProperty(ctx, id)
	if err != nil {
		return domain.Property{}, domain.Internal(fmt.Sprintf("get property %s", id), err)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, p, int(s.cacheTTL.Seconds()))
	}
	return p, nil
}

func (s *QueryService) ListProperties(ctx context.Context) ([]domain.Property, error) {
	out, err := s.repo.ListProperties(ctx)
	if err != nil {
		return nil, domain.Internal("list properties", err)
	}
	if out == nil {
		out = []domain.Property{}
	}
	return out, nil
}

// InvalidateBooking drops the cached view after a status change.
func (s *QueryService) InvalidateBooking(ctx context.Context, id string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, bookingKey(id))
	}
}
