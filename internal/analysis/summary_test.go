package analysis

import (
	"testing"

	"EstateSentinel/internal/model"
)

func TestSummarize(t *testing.T) {
	trends := map[string]model.TrendRecord{
		"A": {Location: "A", Slope: 12.345, RSquared: 0.91234},
		"B": {Location: "B", Slope: -4, RSquared: 0.5},
		"C": {Location: "C", Slope: 0.655, RSquared: 0.2},
	}
	s := Summarize(trends)

	if s.MarketDirection != model.DirectionUp {
		t.Errorf("direction: expected up, got %s", s.MarketDirection)
	}
	if s.AvgSlope != 3 {
		t.Errorf("avg_slope: expected 3, got %v", s.AvgSlope)
	}
	if s.LocationsAnalyzed != 3 || s.PositiveTrends != 2 || s.NegativeTrends != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.BestPerforming.Location != "A" || s.BestPerforming.Slope != 12.35 || s.BestPerforming.RSquared != 0.912 {
		t.Errorf("unexpected best: %+v", s.BestPerforming)
	}
	if s.WorstPerforming.Location != "B" {
		t.Errorf("worst: expected B, got %s", s.WorstPerforming.Location)
	}
}

func TestSummarize_DownAndTies(t *testing.T) {
	s := Summarize(map[string]model.TrendRecord{
		"Z": {Location: "Z", Slope: 0},
		"M": {Location: "M", Slope: 0},
	})
	if s.MarketDirection != model.DirectionDown {
		t.Errorf("zero mean slope must not be up, got %s", s.MarketDirection)
	}
	if s.BestPerforming.Location != "M" || s.WorstPerforming.Location != "M" {
		t.Errorf("ties resolve to the first location in sorted order, got %s/%s",
			s.BestPerforming.Location, s.WorstPerforming.Location)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Message != NoTrendMessage {
		t.Errorf("expected %q, got %q", NoTrendMessage, s.Message)
	}
	if s.BestPerforming != nil || s.LocationsAnalyzed != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}
}
