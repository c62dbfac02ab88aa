package app_test

import (
	"context"
	"sync"
	"time"

	"stayhub/internal/domain"
)

// ---- in-memory store ----

type memStore struct {
	mu         sync.Mutex
	properties map[string]domain.Property
	bookings   []domain.Booking
	payments   []domain.Payment

	activeCalls int
	insertErr   error
	settleErr   error
}

func newMemStore(props ...domain.Property) *memStore {
	s := &memStore{properties: map[string]domain.Property{}}
	for _, p := range props {
		s.properties[p.ID] = p
	}
	return s
}

func (s *memStore) activeLocked(propertyID string, start, end time.Time) []domain.Booking {
	s.activeCalls++
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.PropertyID == propertyID && b.Status.Blocking() && b.StartDate.Before(end) && start.Before(b.EndDate) {
			out = append(out, b)
		}
	}
	return out
}

func (s *memStore) ActiveBookings(ctx context.Context, propertyID string, start, end time.Time) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(propertyID, start, end), nil
}

type memTx struct {
	s       *memStore
	pending []domain.Booking
}

func (t *memTx) ActiveBookings(ctx context.Context, propertyID string, start, end time.Time) ([]domain.Booking, error) {
	return t.s.activeLocked(propertyID, start, end), nil
}

func (t *memTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	if t.s.insertErr != nil {
		return t.s.insertErr
	}
	t.pending = append(t.pending, b)
	return nil
}

func (s *memStore) Admit(ctx context.Context, propertyID string, fn func(context.Context, domain.AdmissionTx, domain.Property) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[propertyID]
	if !ok {
		return domain.NotFound("property " + propertyID)
	}
	tx := &memTx{s: s}
	if err := fn(ctx, tx, p); err != nil {
		return err
	}
	s.bookings = append(s.bookings, tx.pending...)
	return nil
}

func (s *memStore) view(b domain.Booking) domain.BookingView {
	bv := domain.BookingView{Booking: b}
	if p, ok := s.properties[b.PropertyID]; ok {
		bv.Property = &p
	}
	return bv
}

func (s *memStore) GetBooking(ctx context.Context, id string) (domain.BookingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return s.view(b), nil
		}
	}
	return domain.BookingView{}, domain.NotFound("booking " + id)
}

func (s *memStore) ListBookings(ctx context.Context) ([]domain.BookingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.BookingView, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, s.view(b))
	}
	return out, nil
}

func (s *memStore) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok {
		return domain.Property{}, domain.NotFound("property " + id)
	}
	return p, nil
}

func (s *memStore) ListProperties(ctx context.Context) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Property{}
	for _, p := range s.properties {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) InsertPayment(ctx context.Context, p domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, p)
	return nil
}

func (s *memStore) GetPaymentByReference(ctx context.Context, ref string) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.Reference == ref {
			return p, nil
		}
	}
	return domain.Payment{}, domain.NotFound("payment " + ref)
}

func (s *memStore) ListPendingPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.payments {
		if p.Status == domain.PaymentPending && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) Settle(ctx context.Context, ref string) (domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settleErr != nil {
		return domain.Settlement{}, s.settleErr
	}
	var st domain.Settlement
	idx := -1
	for i, p := range s.payments {
		if p.Reference == ref {
			idx = i
		}
	}
	if idx < 0 {
		return st, domain.NotFound("payment " + ref)
	}
	if s.payments[idx].Status == domain.PaymentPending {
		s.payments[idx].Status = domain.PaymentPaid
		st.PaymentChanged = true
	}
	st.Payment = s.payments[idx]
	for i, b := range s.bookings {
		if b.ID == st.Payment.BookingID && b.Status == domain.BookingPendingPayment {
			s.bookings[i].Status = domain.BookingPaid
			st.BookingChanged = true
		}
	}
	return st, nil
}

func (s *memStore) bookingStatus(id string) domain.BookingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return b.Status
		}
	}
	return ""
}

// ---- gateway ----

type fakeGateway struct {
	mu          sync.Mutex
	initErr     error
	verifyErr   error
	verifyCalls int
	lastInit    domain.InitTxRequest
	results     map[string]domain.VerifyTxResult
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{results: map[string]domain.VerifyTxResult{}}
}

func (g *fakeGateway) InitializeTransaction(ctx context.Context, req domain.InitTxRequest) (domain.InitTxResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastInit = req
	if g.initErr != nil {
		return domain.InitTxResult{}, g.initErr
	}
	return domain.InitTxResult{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, ref string) (domain.VerifyTxResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return domain.VerifyTxResult{}, g.verifyErr
	}
	if r, ok := g.results[ref]; ok {
		return r, nil
	}
	return domain.VerifyTxResult{Status: "abandoned", Reference: ref}, nil
}

func (g *fakeGateway) succeed(ref string, amountMinor int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[ref] = domain.VerifyTxResult{
		Succeeded:   true,
		Status:      "success",
		Reference:   ref,
		AmountMinor: amountMinor,
		Raw:         map[string]any{"status": "success", "reference": ref},
	}
}

// ---- cache ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.BookingView:
		*d = v.(domain.BookingView)
	case *domain.Property:
		*d = v.(domain.Property)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

func ptr[T any](v T) *T { return &v }
