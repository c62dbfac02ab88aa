package domain

// Property is owned by the catalog; the reservation core only reads it.
type Property struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Location      string  `json:"location"`
	PricePerNight float64 `json:"pricePerNight"`
}
