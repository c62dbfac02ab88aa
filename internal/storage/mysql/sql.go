package mysql

const bookingColumns = `b.id, b.property_id, b.start_at, b.end_at, b.guest_count,
  b.base_price, b.extra_charge, b.tax_rate, b.total_price, b.status, b.created_at, b.updated_at`

const paymentColumns = `id, booking_id, email, amount, reference, status, created_at, updated_at`

// Row lock on the property serializes admissions for that property.
const lockPropertySQL = `
SELECT id, name, location, price_per_night
FROM properties
WHERE id = ?
FOR UPDATE
`

// Half-open overlap: existing.start < new.end AND new.start < existing.end.
const activeBookingsSQL = `
SELECT ` + bookingColumns + `
FROM bookings b
WHERE b.property_id = ?
  AND b.status <> 'cancelled'
  AND b.start_at < ?
  AND b.end_at > ?
ORDER BY b.start_at
`

const insertBookingSQL = `
INSERT INTO bookings
  (id, property_id, start_at, end_at, guest_count, base_price, extra_charge, tax_rate, total_price, status, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const bookingViewSelect = `
SELECT ` + bookingColumns + `,
  p.id, p.name, p.location, p.price_per_night
FROM bookings b
LEFT JOIN properties p ON p.id = b.property_id
`

const getBookingSQL = bookingViewSelect + `WHERE b.id = ?`

const listBookingsSQL = bookingViewSelect + `ORDER BY b.seq`

const getPropertySQL = `SELECT id, name, location, price_per_night FROM properties WHERE id = ?`

const listPropertiesSQL = `SELECT id, name, location, price_per_night FROM properties ORDER BY id`

const upsertPropertySQL = `
INSERT INTO properties (id, name, location, price_per_night)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name            = VALUES(name),
  location        = VALUES(location),
  price_per_night = VALUES(price_per_night)
`

// -----------------------------------------------------------------------------
// PAYMENTS
// -----------------------------------------------------------------------------

const insertPaymentSQL = `
INSERT INTO payments (id, booking_id, email, amount, reference, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const getPaymentByReferenceSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE reference = ?`

const listPendingPaymentsSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE status = 'pending' ORDER BY seq LIMIT ?`

// Conditional updates: a second settlement matches zero rows.
const markPaymentPaidSQL = `
UPDATE payments SET status = 'paid', updated_at = ?
WHERE reference = ? AND status = 'pending'
`

const markBookingPaidSQL = `
UPDATE bookings SET status = 'paid', updated_at = ?
WHERE id = ? AND status = 'pending_payment'
`
