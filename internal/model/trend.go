package model

import "time"

// PricePoint is one persisted price-per-area observation.
type PricePoint struct {
	Timestamp    time.Time `json:"timestamp"`
	Location     string    `json:"location"`
	PricePerArea float64   `json:"price_per_area"`
}

// TrendRecord is the fitted price-per-area trend of one location.
type TrendRecord struct {
	Location   string  `json:"location"`
	Slope      float64 `json:"slope"`
	Intercept  float64 `json:"intercept"`
	PValue     float64 `json:"p_value"`
	RSquared   float64 `json:"r_squared"`
	DataPoints int     `json:"data_points"`
	AvgPrice   float64 `json:"avg_price"`
	StdPrice   float64 `json:"std_price"`
}

// Market directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// LocationPerformance names a location together with its fitted slope.
type LocationPerformance struct {
	Location string  `json:"location"`
	Slope    float64 `json:"slope"`
	RSquared float64 `json:"r_squared"`
}

// MarketSummary condenses a set of trend records.
type MarketSummary struct {
	Message           string               `json:"message,omitempty"`
	MarketDirection   string               `json:"market_direction,omitempty"`
	AvgSlope          float64              `json:"avg_slope"`
	LocationsAnalyzed int                  `json:"locations_analyzed"`
	PositiveTrends    int                  `json:"positive_trends"`
	NegativeTrends    int                  `json:"negative_trends"`
	BestPerforming    *LocationPerformance `json:"best_performing,omitempty"`
	WorstPerforming   *LocationPerformance `json:"worst_performing,omitempty"`
}

// AnalysisReport is the result of one trend analysis run.
type AnalysisReport struct {
	Trends            map[string]TrendRecord `json:"trends"`
	DealsFlagged      int                    `json:"deals_flagged"`
	DealsCleared      int                    `json:"deals_cleared"`
	ListingsEvaluated int                    `json:"listings_evaluated"`
	Summary           MarketSummary          `json:"summary"`
	TopDeals          []Listing              `json:"top_deals,omitempty"`
	Errors            []string               `json:"errors,omitempty"`
	StartedAt         time.Time              `json:"started_at"`
	FinishedAt        time.Time              `json:"finished_at"`
}
