package analysis

import (
	"math"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"EstateSentinel/internal/model"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func point(loc string, dayOffset float64, ppa float64) model.PricePoint {
	return model.PricePoint{
		Timestamp:    t0.Add(time.Duration(dayOffset * float64(24*time.Hour))),
		Location:     loc,
		PricePerArea: ppa,
	}
}

func TestEstimateTrends_ThreePointLine(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	trends := EstimateTrends([]model.PricePoint{
		point("Q1", 0, 100),
		point("Q1", 1, 200),
		point("Q1", 2, 300),
	}, logger)

	rec, ok := trends["Q1"]
	if !ok {
		t.Fatal("expected a trend for Q1")
	}
	if math.Abs(rec.Slope-100) > 1e-9 {
		t.Errorf("slope: expected 100, got %v", rec.Slope)
	}
	if math.Abs(rec.Intercept-100) > 1e-9 {
		t.Errorf("intercept: expected 100, got %v", rec.Intercept)
	}
	if math.Abs(rec.RSquared-1) > 1e-9 {
		t.Errorf("r_squared: expected 1, got %v", rec.RSquared)
	}
	if rec.DataPoints != 3 {
		t.Errorf("data_points: expected 3, got %d", rec.DataPoints)
	}
	if rec.AvgPrice != 200 || math.Abs(rec.StdPrice-100) > 1e-9 {
		t.Errorf("expected mean 200 std 100, got %v %v", rec.AvgPrice, rec.StdPrice)
	}
}

func TestEstimateTrends_ExcludesTwoPoints(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	trends := EstimateTrends([]model.PricePoint{
		point("small", 0, 100),
		point("small", 1, 110),
		point("big", 0, 100),
		point("big", 1, 90),
		point("big", 2, 80),
	}, logger)

	if _, ok := trends["small"]; ok {
		t.Error("location with 2 points must be excluded")
	}
	if _, ok := trends["big"]; !ok {
		t.Error("expected a trend for big")
	}
}

func TestEstimateTrends_SingularLocationSkipped(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	trends := EstimateTrends([]model.PricePoint{
		point("sameday", 0, 100),
		point("sameday", 0.1, 120),
		point("sameday", 0.2, 140),
		point("ok", 0, 1),
		point("ok", 1, 2),
		point("ok", 3, 4),
	}, logger)

	if _, ok := trends["sameday"]; ok {
		t.Error("location observed on a single day must be omitted")
	}
	if _, ok := trends["ok"]; !ok {
		t.Error("other locations must still be analyzed")
	}
	if len(hook.AllEntries()) == 0 {
		t.Error("expected the skipped location to be logged")
	}
}

func TestElapsedDays_WholeDaysFromEarliest(t *testing.T) {
	days := ElapsedDays([]model.PricePoint{
		point("x", 2.5, 1),
		point("x", 0.5, 1),
		point("x", 1.4, 1),
	})
	want := []float64{2, 0, 0}
	for i := range want {
		if days[i] != want[i] {
			t.Errorf("day %d: expected %v, got %v", i, want[i], days[i])
		}
	}
}
