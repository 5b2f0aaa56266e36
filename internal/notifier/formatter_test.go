package notifier

import (
	"strings"
	"testing"
	"time"

	"EstateSentinel/internal/model"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 ₫"},
		{999, "999 ₫"},
		{1000, "1.000 ₫"},
		{3200000000, "3.200.000.000 ₫"},
		{-1500, "-1.500 ₫"},
		{1234567, "1.234.567 ₫"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%d): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestFormatRunReport(t *testing.T) {
	msg := FormatRunReport([]*model.RunRecord{
		{Source: "chotot", Listings: 40, Pages: 2, Status: model.RunStatusCompleted},
		nil,
		{Source: "batdongsan", Status: model.RunStatusFailed, Error: "status 503 <html>"},
	})
	if !strings.Contains(msg, "chotot</b>: 40 listings") {
		t.Errorf("missing chotot line:\n%s", msg)
	}
	if !strings.Contains(msg, "status 503 &lt;html&gt;") {
		t.Errorf("error text must be escaped:\n%s", msg)
	}
	if !strings.Contains(msg, "Total new listings: 40") {
		t.Errorf("missing total:\n%s", msg)
	}
}

func TestFormatTrendSummary(t *testing.T) {
	report := &model.AnalysisReport{
		FinishedAt:   time.Now(),
		DealsFlagged: 3,
		Summary: model.MarketSummary{
			MarketDirection:   model.DirectionUp,
			AvgSlope:          1.5,
			LocationsAnalyzed: 2,
			PositiveTrends:    1,
			NegativeTrends:    1,
			BestPerforming:    &model.LocationPerformance{Location: "Q1", Slope: 4, RSquared: 0.8},
			WorstPerforming:   &model.LocationPerformance{Location: "Q7", Slope: -1, RSquared: 0.1},
		},
	}
	msg := FormatTrendSummary(report)
	for _, want := range []string{"up", "Best: Q1 +4.00", "Worst: Q7 -1.00", "Deals flagged: 3"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in:\n%s", want, msg)
		}
	}

	empty := FormatTrendSummary(&model.AnalysisReport{Summary: model.MarketSummary{Message: "No trend data available"}})
	if !strings.Contains(empty, "No trend data available") {
		t.Errorf("expected empty message, got:\n%s", empty)
	}
}

func TestFormatTopDeals(t *testing.T) {
	if FormatTopDeals(nil) != "" {
		t.Error("expected empty output without deals")
	}
	l := model.Listing{Title: "Nhà phố", Location: "Q1", Price: 2000000000, Area: 50, Link: "https://chotot.com/mua-ban-nha-dat/1"}
	l.Annotations.SetDeal(25.5, 53000000)
	msg := FormatTopDeals([]model.Listing{l})
	if !strings.Contains(msg, "25.5% below") || !strings.Contains(msg, "2.000.000.000 ₫") {
		t.Errorf("unexpected deal formatting:\n%s", msg)
	}
}
