package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/analysis"
	"EstateSentinel/internal/collector"
	"EstateSentinel/internal/model"
	"EstateSentinel/internal/orchestrator"
)

// Scraper is the orchestrator surface exposed over HTTP.
type Scraper interface {
	Execute(ctx context.Context, source string, maxPages int) (*orchestrator.Result, error)
	Stats() model.RunStats
}

// Analyzer is the analysis surface exposed over HTTP.
type Analyzer interface {
	RunTrendAnalysis(ctx context.Context, lookbackDays int, threshold float64) (*model.AnalysisReport, error)
}

// RunLister reads recorded scrape runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
}

// Defaults fill in query parameters the caller leaves out.
type Defaults struct {
	MaxPages      int
	LookbackDays  int
	DealThreshold float64
}

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Server is the control API.
type Server struct {
	scraper  Scraper
	analyzer Analyzer
	runs     RunLister
	defaults Defaults
	logger   logrus.FieldLogger
	router   *mux.Router
}

func NewServer(sc Scraper, an Analyzer, runs RunLister, defaults Defaults, logger logrus.FieldLogger) *Server {
	s := &Server{scraper: sc, analyzer: an, runs: runs, defaults: defaults, logger: logger}
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/scrape/{source}", s.handleScrape).Methods(http.MethodPost)
	r.HandleFunc("/analysis", s.handleAnalysis).Methods(http.MethodPost)
	r.Use(s.logRequests)
	s.router = r
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.WithField("addr", addr).Info("api listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).Round(time.Millisecond),
		}).Debug("api request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scraper.Stats())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultRunsLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxRunsLimit)

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("list runs")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

type scrapeResponse struct {
	Run      *model.RunRecord `json:"run"`
	Listings int              `json:"listings"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	maxPages, err := intParam(r, "max_pages", s.defaults.MaxPages)
	if err != nil {
		writeError(w, http.StatusBadRequest, "max_pages must be an integer")
		return
	}

	res, err := s.scraper.Execute(r.Context(), source, maxPages)
	switch {
	case errors.Is(err, collector.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, orchestrator.ErrInvalidMaxPages):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.WithError(err).WithField("source", source).Error("scrape request")
		writeError(w, http.StatusInternalServerError, "scrape failed")
		return
	}
	writeJSON(w, http.StatusOK, scrapeResponse{Run: res.Record, Listings: len(res.Listings)})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	lookback, err := intParam(r, "lookback_days", s.defaults.LookbackDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lookback_days must be an integer")
		return
	}
	threshold := s.defaults.DealThreshold
	if v := r.URL.Query().Get("deal_threshold"); v != "" {
		if threshold, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "deal_threshold must be a number")
			return
		}
	}

	report, err := s.analyzer.RunTrendAnalysis(r.Context(), lookback, threshold)
	switch {
	case errors.Is(err, analysis.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, analysis.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.logger.WithError(err).Error("analysis request")
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
