package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"stayhub/internal/domain"
)

const errDuplicateEntry = 1062

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// Open connects and pings. The DSN needs parseTime=true&loc=UTC.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) DB() *sql.DB   { return r.db }
func (r *Repo) Close() error { return r.db.Close() }

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

func scanBooking(s scanner, b *domain.Booking, extra ...any) error {
	var status string
	dest := []any{
		&b.ID, &b.PropertyID, &b.StartDate, &b.EndDate, &b.GuestCount,
		&b.BasePrice, &b.ExtraCharge, &b.TaxRate, &b.TotalPrice, &status,
		&b.CreatedAt, &b.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	b.Status = domain.BookingStatus(status)
	b.StartDate = b.StartDate.UTC()
	b.EndDate = b.EndDate.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return nil
}

func scanBookingView(s scanner) (domain.BookingView, error) {
	var bv domain.BookingView
	var pid, name, location sql.NullString
	var price sql.NullFloat64
	if err := scanBooking(s, &bv.Booking, &pid, &name, &location, &price); err != nil {
		return domain.BookingView{}, err
	}
	if pid.Valid {
		bv.Property = &domain.Property{
			ID:            pid.String,
			Name:          name.String,
			Location:      location.String,
			PricePerNight: price.Float64,
		}
	}
	return bv, nil
}

func scanPayment(s scanner) (domain.Payment, error) {
	var p domain.Payment
	var status string
	if err := s.Scan(&p.ID, &p.BookingID, &p.Email, &p.Amount, &p.Reference, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Payment{}, err
	}
	p.Status = domain.PaymentStatus(status)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func activeBookings(ctx context.Context, q queryer, propertyID string, start, end time.Time) ([]domain.Booking, error) {
	rows, err := q.QueryContext(ctx, activeBookingsSQL, propertyID, end, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---- bookings ----

func (r *Repo) ActiveBookings(ctx context.Context, propertyID string, start, end time.Time) ([]domain.Booking, error) {
	return activeBookings(ctx, r.db, propertyID, start, end)
}

type admissionTx struct{ tx *sql.Tx }

func (a *admissionTx) ActiveBookings(ctx context.Context, propertyID string, start, end time.Time) ([]domain.Booking, error) {
	return activeBookings(ctx, a.tx, propertyID, start, end)
}

func (a *admissionTx) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := a.tx.ExecContext(ctx, insertBookingSQL,
		b.ID, b.PropertyID, b.StartDate, b.EndDate, b.GuestCount,
		b.BasePrice, b.ExtraCharge, b.TaxRate, b.TotalPrice, string(b.Status),
		b.CreatedAt, b.UpdatedAt,
	)
	if isDuplicate(err) {
		return domain.Conflict("booking %s already exists", b.ID)
	}
	return err
}

// Admit runs fn while holding the property's row lock. READ COMMITTED makes
// the overlap query inside fn see every booking committed before the lock
// was granted.
func (r *Repo) Admit(ctx context.Context, propertyID string, fn func(ctx context.Context, tx domain.AdmissionTx, p domain.Property) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var p domain.Property
	if err := tx.QueryRowContext(ctx, lockPropertySQL, propertyID).
		Scan(&p.ID, &p.Name, &p.Location, &p.PricePerNight); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("property " + propertyID)
		}
		return err
	}

	if err := fn(ctx, &admissionTx{tx: tx}, p); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) GetBooking(ctx context.Context, id string) (domain.BookingView, error) {
	bv, err := scanBookingView(r.db.QueryRowContext(ctx, getBookingSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BookingView{}, domain.NotFound("booking " + id)
		}
		return domain.BookingView{}, err
	}
	return bv, nil
}

func (r *Repo) ListBookings(ctx context.Context) ([]domain.BookingView, error) {
	rows, err := r.db.QueryContext(ctx, listBookingsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BookingView{}
	for rows.Next() {
		bv, err := scanBookingView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bv)
	}
	return out, rows.Err()
}

// ---- properties ----

func (r *Repo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	var p domain.Property
	if err := r.db.QueryRowContext(ctx, getPropertySQL, id).
		Scan(&p.ID, &p.Name, &p.Location, &p.PricePerNight); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Property{}, domain.NotFound("property " + id)
		}
		return domain.Property{}, err
	}
	return p, nil
}

func (r *Repo) ListProperties(ctx context.Context) ([]domain.Property, error) {
	rows, err := r.db.QueryContext(ctx, listPropertiesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Property{}
	for rows.Next() {
		var p domain.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Location, &p.PricePerNight); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PutProperty is the catalog-side seed path; the reservation core never calls it.
func (r *Repo) PutProperty(ctx context.Context, p domain.Property) error {
	_, err := r.db.ExecContext(ctx, upsertPropertySQL, p.ID, p.Name, p.Location, p.PricePerNight)
	return err
}

// ---- payments ----

func (r *Repo) InsertPayment(ctx context.Context, p domain.Payment) error {
	_, err := r.db.ExecContext(ctx, insertPaymentSQL,
		p.ID, p.BookingID, p.Email, p.Amount, p.Reference, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if isDuplicate(err) {
		return domain.Conflict("payment reference %s already recorded", p.Reference)
	}
	return err
}

func (r *Repo) GetPaymentByReference(ctx context.Context, reference string) (domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, getPaymentByReferenceSQL, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.NotFound("payment " + reference)
		}
		return domain.Payment{}, err
	}
	return p, nil
}

func (r *Repo) ListPendingPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, listPendingPaymentsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Settle(ctx context.Context, reference string) (domain.Settlement, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Settlement{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	var st domain.Settlement

	res, err := tx.ExecContext(ctx, markPaymentPaidSQL, now, reference)
	if err != nil {
		return domain.Settlement{}, err
	}
	n, _ := res.RowsAffected()
	st.PaymentChanged = n > 0

	st.Payment, err = scanPayment(tx.QueryRowContext(ctx, getPaymentByReferenceSQL, reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Settlement{}, domain.NotFound("payment " + reference)
		}
		return domain.Settlement{}, err
	}

	res, err = tx.ExecContext(ctx, markBookingPaidSQL, now, st.Payment.BookingID)
	if err != nil {
		return domain.Settlement{}, err
	}
	n, _ = res.RowsAffected()
	st.BookingChanged = n > 0

	if err := tx.Commit(); err != nil {
		return domain.Settlement{}, err
	}
	return st, nil
}
