package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"EstateSentinel/internal/model"
)

// FormatRunReport summarizes one scrape cycle over all sources.
func FormatRunReport(runs []*model.RunRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏠 <b>Scrape report</b> | %s\n\n", time.Now().Format("2006-01-02 15:04")))

	total := 0
	for _, r := range runs {
		if r == nil {
			continue
		}
		total += r.Listings
		b.WriteString(fmt.Sprintf("%s <b>%s</b>: %d listings, %d pages (%s)\n",
			statusIcon(r.Status), html.EscapeString(r.Source), r.Listings, r.Pages, r.Status))
		if r.Skipped > 0 {
			b.WriteString(fmt.Sprintf("   skipped: %d\n", r.Skipped))
		}
		if r.Error != "" {
			b.WriteString(fmt.Sprintf("   error: %s\n", html.EscapeString(r.Error)))
		}
	}
	b.WriteString(fmt.Sprintf("\nTotal new listings: %d", total))
	return b.String()
}

func statusIcon(s model.RunStatus) string {
	switch s {
	case model.RunStatusCompleted:
		return "✅"
	case model.RunStatusPartial:
		return "⚠️"
	case model.RunStatusEmpty:
		return "➖"
	default:
		return "❌"
	}
}

// FormatStats formats the cumulative orchestrator counters.
func FormatStats(s model.RunStats) string {
	var b strings.Builder
	b.WriteString("📦 <b>Scraper statistics</b>\n\n")
	b.WriteString(fmt.Sprintf("Total runs: %d\n", s.TotalRuns))
	b.WriteString(fmt.Sprintf("Successful runs: %d\n", s.SuccessfulRuns))

	sources := make([]string, 0, len(s.PerSourceCounts))
	for src := range s.PerSourceCounts {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		line := fmt.Sprintf("  %s: %d listings", html.EscapeString(src), s.PerSourceCounts[src])
		if at, ok := s.LastRunBySource[src]; ok && !at.IsZero() {
			line += fmt.Sprintf(" (last %s)", at.Local().Format("01-02 15:04"))
		}
		b.WriteString(line + "\n")
	}
	if !s.LastRunAt.IsZero() {
		b.WriteString(fmt.Sprintf("Last run: %s\n", s.LastRunAt.Local().Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatTrendSummary formats the market summary of an analysis report.
func FormatTrendSummary(report *model.AnalysisReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>Market trends</b> | %s\n\n", report.FinishedAt.Local().Format("2006-01-02")))

	s := report.Summary
	if s.Message != "" {
		b.WriteString(s.Message + "\n")
	} else {
		arrow := "📉"
		if s.MarketDirection == model.DirectionUp {
			arrow = "📈"
		}
		b.WriteString(fmt.Sprintf("Direction: %s %s (avg slope %+.2f/day)\n", arrow, s.MarketDirection, s.AvgSlope))
		b.WriteString(fmt.Sprintf("Locations: %d (%d up, %d down)\n", s.LocationsAnalyzed, s.PositiveTrends, s.NegativeTrends))
		if s.BestPerforming != nil {
			b.WriteString(fmt.Sprintf("Best: %s %+.2f (R² %.3f)\n",
				html.EscapeString(s.BestPerforming.Location), s.BestPerforming.Slope, s.BestPerforming.RSquared))
		}
		if s.WorstPerforming != nil {
			b.WriteString(fmt.Sprintf("Worst: %s %+.2f (R² %.3f)\n",
				html.EscapeString(s.WorstPerforming.Location), s.WorstPerforming.Slope, s.WorstPerforming.RSquared))
		}
	}
	b.WriteString(fmt.Sprintf("\nDeals flagged: %d", report.DealsFlagged))
	if report.DealsCleared > 0 {
		b.WriteString(fmt.Sprintf(" (%d cleared)", report.DealsCleared))
	}
	b.WriteString("\n")
	for _, e := range report.Errors {
		b.WriteString(fmt.Sprintf("⚠️ %s\n", html.EscapeString(e)))
	}
	return b.String()
}

// FormatTopDeals lists the best deals of an analysis run.
func FormatTopDeals(deals []model.Listing) string {
	if len(deals) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("💎 <b>Top deals</b>\n\n")
	for i, l := range deals {
		if l.Annotations.Deal == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, html.EscapeString(l.Title)))
		b.WriteString(fmt.Sprintf("   %s | %s | %.0f m²\n", html.EscapeString(l.Location), FormatPrice(l.Price), l.Area))
		b.WriteString(fmt.Sprintf("   %.1f%% below area average\n", l.Annotations.Deal.Score))
		if l.Link != "" {
			b.WriteString(fmt.Sprintf("   <a href=\"%s\">view</a>\n", html.EscapeString(l.Link)))
		}
	}
	return b.String()
}

// FormatPrice renders an amount in dong with dot thousands separators.
func FormatPrice(v int64) string {
	return humanize.FormatInteger("#.###,", int(v)) + " ₫"
}
