package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePerAreaPrecision is the number of decimal places kept on price-per-area.
const PricePerAreaPrecision = 2

// UnknownLocation is used when a source provides no location sub-fields.
const UnknownLocation = "Unknown"

// Listing is one normalized real-estate offer captured from a source.
type Listing struct {
	ID           int64       `json:"id,omitempty"`
	Title        string      `json:"title"`
	Location     string      `json:"location" validate:"required"`
	Price        int64       `json:"price" validate:"gte=0"`
	Area         float64     `json:"area" validate:"gte=0"`
	PricePerArea *float64    `json:"price_per_area"`
	ImageURL     string      `json:"image_url,omitempty"`
	Link         string      `json:"link" validate:"omitempty,url"`
	PropertyType string      `json:"property_type"`
	Bedrooms     *int        `json:"bedrooms,omitempty"`
	Bathrooms    *int        `json:"bathrooms,omitempty"`
	CapturedAt   time.Time   `json:"captured_at"`
	Source       string      `json:"source" validate:"required"`
	Annotations  Annotations `json:"annotations"`
}

// ComputePricePerArea returns price/area rounded to PricePerAreaPrecision,
// or nil when area is not positive.
func ComputePricePerArea(price int64, area float64) *float64 {
	if area <= 0 {
		return nil
	}
	v, _ := decimal.NewFromInt(price).
		Div(decimal.NewFromFloat(area)).
		Round(PricePerAreaPrecision).
		Float64()
	return &v
}

// Normalize recomputes every derived field. Upstream per-area values are never trusted.
func (l *Listing) Normalize() {
	l.PricePerArea = ComputePricePerArea(l.Price, l.Area)
	if l.Location == "" {
		l.Location = UnknownLocation
	}
}
