package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"EstateSentinel/internal/analysis"
	"EstateSentinel/internal/collector"
	"EstateSentinel/internal/model"
	"EstateSentinel/internal/orchestrator"
	"EstateSentinel/internal/store"
)

type stubScraper struct {
	gotMaxPages int
}

func (s *stubScraper) Execute(_ context.Context, source string, maxPages int) (*orchestrator.Result, error) {
	if source != "chotot" {
		return nil, fmt.Errorf("%w: %s", collector.ErrUnknownSource, source)
	}
	if maxPages <= 0 {
		return nil, orchestrator.ErrInvalidMaxPages
	}
	s.gotMaxPages = maxPages
	return &orchestrator.Result{
		Listings: make([]model.Listing, 7),
		Record:   &model.RunRecord{Source: source, Listings: 7, Status: model.RunStatusCompleted},
	}, nil
}

func (s *stubScraper) Stats() model.RunStats {
	return model.RunStats{TotalRuns: 2, SuccessfulRuns: 1}
}

type stubAnalyzer struct {
	lookback  int
	threshold float64
	err       error
}

func (a *stubAnalyzer) RunTrendAnalysis(_ context.Context, lookback int, threshold float64) (*model.AnalysisReport, error) {
	a.lookback, a.threshold = lookback, threshold
	if a.err != nil {
		return nil, a.err
	}
	return &model.AnalysisReport{DealsFlagged: 4}, nil
}

func newServer(an *stubAnalyzer) (*Server, *stubScraper) {
	logger, _ := logtest.NewNullLogger()
	sc := &stubScraper{}
	runs := store.NewMemoryStore()
	_ = runs.RecordRun(context.Background(), &model.RunRecord{ID: "r1", Source: "chotot"})
	return NewServer(sc, an, runs, Defaults{MaxPages: 10, LookbackDays: 30, DealThreshold: 0.8}, logger), sc
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthAndStats(t *testing.T) {
	s, _ := newServer(&stubAnalyzer{})

	if rec := do(t, s, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/stats")
	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["total_runs"] != float64(2) || stats["successful_runs"] != float64(1) {
		t.Errorf("unexpected stats body %v", stats)
	}
}

func TestScrape(t *testing.T) {
	s, sc := newServer(&stubAnalyzer{})

	tests := []struct {
		target string
		want   int
	}{
		{"/scrape/chotot", http.StatusOK},
		{"/scrape/chotot?max_pages=3", http.StatusOK},
		{"/scrape/chotot?max_pages=abc", http.StatusBadRequest},
		{"/scrape/chotot?max_pages=0", http.StatusBadRequest},
		{"/scrape/nowhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := do(t, s, http.MethodPost, tt.target); rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.target, tt.want, rec.Code)
		}
	}
	if sc.gotMaxPages != 3 {
		t.Errorf("expected max_pages=3 forwarded, got %d", sc.gotMaxPages)
	}
	if rec := do(t, s, http.MethodGet, "/scrape/chotot"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET scrape: expected 405, got %d", rec.Code)
	}
}

func TestAnalysis(t *testing.T) {
	an := &stubAnalyzer{}
	s, _ := newServer(an)

	rec := do(t, s, http.MethodPost, "/analysis")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if an.lookback != 30 || an.threshold != 0.8 {
		t.Errorf("expected defaults forwarded, got %d %v", an.lookback, an.threshold)
	}

	do(t, s, http.MethodPost, "/analysis?lookback_days=7&deal_threshold=0.7")
	if an.lookback != 7 || an.threshold != 0.7 {
		t.Errorf("expected query params forwarded, got %d %v", an.lookback, an.threshold)
	}

	an.err = analysis.ErrInProgress
	if rec := do(t, s, http.MethodPost, "/analysis"); rec.Code != http.StatusConflict {
		t.Errorf("in progress: expected 409, got %d", rec.Code)
	}
	an.err = fmt.Errorf("%w: bad", analysis.ErrInvalidParams)
	if rec := do(t, s, http.MethodPost, "/analysis"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid params: expected 400, got %d", rec.Code)
	}
}

func TestRuns(t *testing.T) {
	s, _ := newServer(&stubAnalyzer{})

	rec := do(t, s, http.MethodGet, "/runs?limit=5")
	var runs []model.RunRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Errorf("unexpected runs %+v", runs)
	}
	if rec := do(t, s, http.MethodGet, "/runs?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit: expected 400, got %d", rec.Code)
	}
}
