package analysis

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/calculator"
	"EstateSentinel/internal/model"
)

// MinTrendPoints is the sample size a location must strictly exceed to get a trend.
const MinTrendPoints = 2

const day = 24 * time.Hour

// GroupByLocation splits observations per location, preserving their order.
func GroupByLocation(points []model.PricePoint) map[string][]model.PricePoint {
	groups := make(map[string][]model.PricePoint)
	for _, p := range points {
		groups[p.Location] = append(groups[p.Location], p)
	}
	return groups
}

// ElapsedDays returns whole days since the earliest observation of the series.
func ElapsedDays(series []model.PricePoint) []float64 {
	if len(series) == 0 {
		return nil
	}
	first := series[0].Timestamp
	for _, p := range series[1:] {
		if p.Timestamp.Before(first) {
			first = p.Timestamp
		}
	}
	days := make([]float64, len(series))
	for i, p := range series {
		days[i] = math.Floor(float64(p.Timestamp.Sub(first)) / float64(day))
	}
	return days
}

// FitTrend regresses price-per-area on elapsed days for one location.
func FitTrend(location string, series []model.PricePoint) (model.TrendRecord, error) {
	if len(series) <= MinTrendPoints {
		return model.TrendRecord{}, calculator.ErrInsufficientData
	}
	xs := ElapsedDays(series)
	ys := make([]float64, len(series))
	for i, p := range series {
		ys[i] = p.PricePerArea
	}

	fit, err := calculator.LinearRegression(xs, ys)
	if err != nil {
		return model.TrendRecord{}, err
	}
	mean, std := calculator.MeanStd(ys)

	return model.TrendRecord{
		Location:   location,
		Slope:      fit.Slope,
		Intercept:  fit.Intercept,
		PValue:     fit.PValue,
		RSquared:   fit.RSquared,
		DataPoints: fit.N,
		AvgPrice:   mean,
		StdPrice:   std,
	}, nil
}

// EstimateTrends fits a trend for every location with enough observations.
// Locations that cannot be fitted are logged and left out.
func EstimateTrends(points []model.PricePoint, logger logrus.FieldLogger) map[string]model.TrendRecord {
	groups := GroupByLocation(points)
	locations := make([]string, 0, len(groups))
	for loc := range groups {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	trends := make(map[string]model.TrendRecord)
	for _, loc := range locations {
		series := groups[loc]
		if len(series) <= MinTrendPoints {
			continue
		}
		rec, err := FitTrend(loc, series)
		if err != nil {
			entry := logger.WithError(err).WithFields(logrus.Fields{"location": loc, "points": len(series)})
			if errors.Is(err, calculator.ErrSingular) {
				entry.Warn("all observations on the same day, skipping location")
			} else {
				entry.Error("trend fit failed, skipping location")
			}
			continue
		}
		trends[loc] = rec
	}
	return trends
}

// SortedLocations returns the keys of trends in ascending order.
func SortedLocations(trends map[string]model.TrendRecord) []string {
	locs := make([]string, 0, len(trends))
	for loc := range trends {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	return locs
}
