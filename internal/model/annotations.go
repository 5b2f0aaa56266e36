package model

import (
	"encoding/json"
	"fmt"
)

// Annotation keys owned by the deal flagger.
const (
	KeyIsDeal           = "is_deal"
	KeyDealScore        = "deal_score"
	KeyAvgPriceLocation = "avg_price_location"
)

// DealFlag is the derived deal annotation of a listing.
type DealFlag struct {
	Score            float64 `json:"deal_score"`
	AvgPriceLocation float64 `json:"avg_price_location"`
}

// Annotations is the open extension record of a listing: typed derived data
// plus source-specific passthrough fields. It serializes as one flat JSON object.
type Annotations struct {
	Deal  *DealFlag
	Extra map[string]any
}

// IsDeal reports whether the listing currently carries a deal flag.
func (a Annotations) IsDeal() bool { return a.Deal != nil }

// SetDeal marks the listing as a deal.
func (a *Annotations) SetDeal(score, avg float64) {
	a.Deal = &DealFlag{Score: score, AvgPriceLocation: avg}
}

// ClearDeal removes the deal flag and reports whether one was present.
func (a *Annotations) ClearDeal() bool {
	had := a.Deal != nil
	a.Deal = nil
	return had
}

// SameDeal reports whether two annotation records carry the same deal flag.
func (a Annotations) SameDeal(b Annotations) bool {
	if a.Deal == nil || b.Deal == nil {
		return a.Deal == nil && b.Deal == nil
	}
	return *a.Deal == *b.Deal
}

// MarshalJSON flattens Extra and the deal keys into a single object.
func (a Annotations) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+3)
	for k, v := range a.Extra {
		out[k] = v
	}
	delete(out, KeyIsDeal)
	delete(out, KeyDealScore)
	delete(out, KeyAvgPriceLocation)
	if a.Deal != nil {
		out[KeyIsDeal] = true
		out[KeyDealScore] = a.Deal.Score
		out[KeyAvgPriceLocation] = a.Deal.AvgPriceLocation
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the deal keys out of a flat object.
func (a *Annotations) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Deal = nil
	if isDeal, _ := raw[KeyIsDeal].(bool); isDeal {
		score, _ := raw[KeyDealScore].(float64)
		avg, _ := raw[KeyAvgPriceLocation].(float64)
		a.Deal = &DealFlag{Score: score, AvgPriceLocation: avg}
	}
	delete(raw, KeyIsDeal)
	delete(raw, KeyDealScore)
	delete(raw, KeyAvgPriceLocation)
	if len(raw) == 0 {
		raw = nil
	}
	a.Extra = raw
	return nil
}

// DecodeAnnotations parses a stored annotation blob. Empty input yields an empty record.
func DecodeAnnotations(blob []byte) (Annotations, error) {
	var a Annotations
	if len(blob) == 0 || string(blob) == "null" {
		return a, nil
	}
	if err := json.Unmarshal(blob, &a); err != nil {
		return Annotations{}, fmt.Errorf("decode annotations: %w", err)
	}
	return a, nil
}

// EncodeAnnotations serializes annotations for storage.
func EncodeAnnotations(a Annotations) ([]byte, error) {
	return json.Marshal(a)
}
