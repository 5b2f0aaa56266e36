package analysis

import (
	"EstateSentinel/internal/calculator"
	"EstateSentinel/internal/model"
)

// NoTrendMessage is reported when no location had enough data.
const NoTrendMessage = "No trend data available"

// Summarize condenses trend records into a market overview.
// Locations are visited in sorted order, so on equal slopes the
// alphabetically first location is reported as best or worst.
func Summarize(trends map[string]model.TrendRecord) model.MarketSummary {
	if len(trends) == 0 {
		return model.MarketSummary{Message: NoTrendMessage}
	}

	var (
		sum         float64
		pos, neg    int
		best, worst *model.TrendRecord
	)
	for _, loc := range SortedLocations(trends) {
		t := trends[loc]
		sum += t.Slope
		switch {
		case t.Slope > 0:
			pos++
		case t.Slope < 0:
			neg++
		}
		if best == nil || t.Slope > best.Slope {
			best = &t
		}
		if worst == nil || t.Slope < worst.Slope {
			worst = &t
		}
	}

	avg := sum / float64(len(trends))
	direction := model.DirectionDown
	if avg > 0 {
		direction = model.DirectionUp
	}

	return model.MarketSummary{
		MarketDirection:   direction,
		AvgSlope:          calculator.Round(avg, 2),
		LocationsAnalyzed: len(trends),
		PositiveTrends:    pos,
		NegativeTrends:    neg,
		BestPerforming:    performance(best),
		WorstPerforming:   performance(worst),
	}
}

func performance(t *model.TrendRecord) *model.LocationPerformance {
	return &model.LocationPerformance{
		Location: t.Location,
		Slope:    calculator.Round(t.Slope, 2),
		RSquared: calculator.Round(t.RSquared, 3),
	}
}
