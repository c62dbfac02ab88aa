// Package boltstore is an embedded BoltDB store for single-node deployments and
// tests. Bolt allows one writer at a time, so every Admit is serialized
// against every other write: the conflict check and the insert can never
// interleave with another admission.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"stayhub/internal/domain"
)

var (
	bucketProperties       = []byte("properties")
	bucketBookings         = []byte("bookings")
	bucketBookingOrder     = []byte("bookings_by_seq")
	bucketPropertyBookings = []byte("bookings_by_property")
	bucketPayments         = []byte("payments")
	bucketPaymentOrder     = []byte("payments_by_seq")
	bucketPaymentRefs      = []byte("payments_by_reference")
)

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database file and its buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketProperties, bucketBookings, bucketBookingOrder, bucketPropertyBookings,
			bucketPayments, bucketPaymentOrder, bucketPaymentRefs,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

func propertyIndexKey(propertyID, bookingID string) []byte {
	return []byte(propertyID + "\x00" + bookingID)
}

func getJSON(b *bolt.Bucket, key []byte, dst any) (bool, error) {
	v := b.Get(key)
	if v == nil {
		return false, nil
	}
	return true, json.Unmarshal(v, dst)
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func getProperty(tx *bolt.Tx, id string) (domain.Property, error) {
	var p domain.Property
	ok, err := getJSON(tx.Bucket(bucketProperties), []byte(id), &p)
	if err != nil {
		return domain.Property{}, err
	}
	if !ok {
		return domain.Property{}, domain.NotFound("property " + id)
	}
	return p, nil
}

func activeBookings(tx *bolt.Tx, propertyID string, start, end time.Time) ([]domain.Booking, error) {
	idx := tx.Bucket(bucketPropertyBookings).Cursor()
	bookings := tx.Bucket(bucketBookings)
	prefix := []byte(propertyID + "\x00")

	var out []domain.Booking
	for k, _ := idx.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = idx.Next() {
		var b domain.Booking
		ok, err := getJSON(bookings, k[len(prefix):], &b)
		if err != nil {
			return nil, err
		}
		if !ok || !b.Status.Blocking() {
			continue
		}
		if b.StartDate.Before(end) && start.Before(b.EndDate) {
			out = append(out, b)
		}
	}
	return out, nil
}

func bookingView(tx *bolt.Tx, b domain.Booking) domain.BookingView {
	bv := domain.BookingView{Booking: b}
	if p, err := getProperty(tx, b.PropertyID); err == nil {
		bv.Property = &p
	}
	return bv
}

// ---- bookings ----

func (s *Store) ActiveBookings(ctx context.Context, propertyID string, start, end time.Time) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Booking
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = activeBookings(tx, propertyID, start, end)
		return err
	})
	return out, err
}

type admissionTx struct{ tx *bolt.Tx }

func (a *admissionTx) ActiveBookings(_ context.Context, propertyID string, start, end time.Time) ([]domain.Booking, error) {
	return activeBookings(a.tx, propertyID, start, end)
}

func (a *admissionTx) InsertBooking(_ context.Context, b domain.Booking) error {
	bookings := a.tx.Bucket(bucketBookings)
	if bookings.Get([]byte(b.ID)) != nil {
		return domain.Conflict("booking %s already exists", b.ID)
	}
	if err := putJSON(bookings, []byte(b.ID), b); err != nil {
		return err
	}
	order := a.tx.Bucket(bucketBookingOrder)
	seq, err := order.NextSequence()
	if err != nil {
		return err
	}
	if err := order.Put(seqKey(seq), []byte(b.ID)); err != nil {
		return err
	}
	return a.tx.Bucket(bucketPropertyBookings).Put(propertyIndexKey(b.PropertyID, b.ID), nil)
}

func (s *Store) Admit(ctx context.Context, propertyID string, fn func(ctx context.Context, tx domain.AdmissionTx, p domain.Property) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		p, err := getProperty(tx, propertyID)
		if err != nil {
			return err
		}
		return fn(ctx, &admissionTx{tx: tx}, p)
	})
}

func (s *Store) GetBooking(ctx context.Context, id string) (domain.BookingView, error) {
	if err := ctx.Err(); err != nil {
		return domain.BookingView{}, err
	}
	var bv domain.BookingView
	err := s.db.View(func(tx *bolt.Tx) error {
		var b domain.Booking
		ok, err := getJSON(tx.Bucket(bucketBookings), []byte(id), &b)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("booking " + id)
		}
		bv = bookingView(tx, b)
		return nil
	})
	return bv, err
}

func (s *Store) ListBookings(ctx context.Context) ([]domain.BookingView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.BookingView{}
	err := s.db.View(func(tx *bolt.Tx) error {
		bookings := tx.Bucket(bucketBookings)
		return tx.Bucket(bucketBookingOrder).ForEach(func(_, id []byte) error {
			var b domain.Booking
			ok, err := getJSON(bookings, id, &b)
			if err != nil || !ok {
				return err
			}
			out = append(out, bookingView(tx, b))
			return nil
		})
	})
	return out, err
}

// ---- properties ----

func (s *Store) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	if err := ctx.Err(); err != nil {
		return domain.Property{}, err
	}
	var p domain.Property
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		p, err = getProperty(tx, id)
		return err
	})
	return p, err
}

func (s *Store) ListProperties(ctx context.Context) ([]domain.Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []domain.Property{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProperties).ForEach(func(_, v []byte) error {
			var p domain.Property
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

// PutProperty is the catalog-side seed path; the reservation core never calls it.
func (s *Store) PutProperty(_ context.Context, p domain.Property) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketProperties), []byte(p.ID), p)
	})
}

// ---- payments ----

func (s *Store) InsertPayment(ctx context.Context, p domain.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		refs := tx.Bucket(bucketPaymentRefs)
		if refs.Get([]byte(p.Reference)) != nil {
			return domain.Conflict("payment reference %s already recorded", p.Reference)
		}
		if tx.Bucket(bucketBookings).Get([]byte(p.BookingID)) == nil {
			return domain.NotFound("booking " + p.BookingID)
		}
		if err := putJSON(tx.Bucket(bucketPayments), []byte(p.ID), p); err != nil {
			return err
		}
		order := tx.Bucket(bucketPaymentOrder)
		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		if err := order.Put(seqKey(seq), []byte(p.ID)); err != nil {
			return err
		}
		return refs.Put([]byte(p.Reference), []byte(p.ID))
	})
}

func paymentByReference(tx *bolt.Tx, reference string) (domain.Payment, error) {
	id := tx.Bucket(bucketPaymentRefs).Get([]byte(reference))
	if id == nil {
		return domain.Payment{}, domain.NotFound("payment " + reference)
	}
	var p domain.Payment
	ok, err := getJSON(tx.Bucket(bucketPayments), id, &p)
	if err != nil {
		return domain.Payment{}, err
	}
	if !ok {
		return domain.Payment{}, domain.NotFound("payment " + reference)
	}
	return p, nil
}

func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Payment{}, err
	}
	var p domain.Payment
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		p, err = paymentByReference(tx, reference)
		return err
	})
	return p, err
}

func (s *Store) ListPendingPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.Payment
	err := s.db.View(func(tx *bolt.Tx) error {
		payments := tx.Bucket(bucketPayments)
		c := tx.Bucket(bucketPaymentOrder).Cursor()
		for k, id := c.First(); k != nil && len(out) < limit; k, id = c.Next() {
			var p domain.Payment
			ok, err := getJSON(payments, id, &p)
			if err != nil {
				return err
			}
			if ok && p.Status == domain.PaymentPending {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// Settle applies both paid transitions in one write transaction. Records
// already paid are left untouched.
func (s *Store) Settle(ctx context.Context, reference string) (domain.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settlement{}, err
	}
	var st domain.Settlement
	err := s.db.Update(func(tx *bolt.Tx) error {
		p, err := paymentByReference(tx, reference)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if p.Status == domain.PaymentPending {
			p.Status = domain.PaymentPaid
			p.UpdatedAt = now
			if err := putJSON(tx.Bucket(bucketPayments), []byte(p.ID), p); err != nil {
				return err
			}
			st.PaymentChanged = true
		}
		st.Payment = p

		bookings := tx.Bucket(bucketBookings)
		var b domain.Booking
		ok, err := getJSON(bookings, []byte(p.BookingID), &b)
		if err != nil || !ok {
			return err
		}
		if b.Status == domain.BookingPendingPayment {
			b.Status = domain.BookingPaid
			b.UpdatedAt = now
			if err := putJSON(bookings, []byte(b.ID), b); err != nil {
				return err
			}
			st.BookingChanged = true
		}
		return nil
	})
	if err != nil {
		return domain.Settlement{}, err
	}
	return st, nil
}
