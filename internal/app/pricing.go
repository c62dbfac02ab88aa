package app

import (
	"math"
	"time"
)

// PriceEpsilon is the largest client/server total difference still accepted.
const PriceEpsilon = 0.01

const oneDay = 24 * time.Hour

// Nights counts started days in [start,end); a partial day bills as a night.
func Nights(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(oneDay)))
}

type Quote struct {
	Nights      int
	BasePrice   float64
	ExtraCharge float64
	ServerTotal float64
	TotalPrice  float64 // resolved total actually charged
}

// QuoteStay prices a stay and reconciles an optional client-declared total.
// The client value survives only when it is within PriceEpsilon of ours.
func QuoteStay(start, end time.Time, pricePerNight, extraCharge float64, clientTotal *float64) Quote {
	n := Nights(start, end)
	base := float64(n) * pricePerNight
	server := base + extraCharge
	q := Quote{Nights: n, BasePrice: base, ExtraCharge: extraCharge, ServerTotal: server, TotalPrice: server}
	if clientTotal != nil && math.Abs(*clientTotal-server) < PriceEpsilon {
		q.TotalPrice = *clientTotal
	}
	return q
}

// MinorUnits converts a currency amount to the gateway's integer unit.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
