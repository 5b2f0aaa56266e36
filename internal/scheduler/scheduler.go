package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/analysis"
	"EstateSentinel/internal/model"
	"EstateSentinel/internal/notifier"
	"EstateSentinel/internal/orchestrator"
)

// Scraper runs paginated scrapes over registered sources.
type Scraper interface {
	Execute(ctx context.Context, source string, maxPages int) (*orchestrator.Result, error)
	RunAll(ctx context.Context, sources []string, maxPages int) ([]*orchestrator.Result, error)
	Stats() model.RunStats
}

// Analyzer runs the trend and deal analysis.
type Analyzer interface {
	RunTrendAnalysis(ctx context.Context, lookbackDays int, threshold float64) (*model.AnalysisReport, error)
}

// Jobs configures the recurring tasks.
type Jobs struct {
	ScrapeCron    string
	AnalysisCron  string
	Sources       []string
	MaxPages      int
	LookbackDays  int
	DealThreshold float64
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Scraper  Scraper
	Analyzer Analyzer
	Notifier notifier.Notifier
	Jobs     Jobs
	Ctx      context.Context
	Logger   logrus.FieldLogger

	mu         sync.Mutex
	lastReport *model.AnalysisReport
}

// NewScheduler creates a new Scheduler. Overlapping runs of the same job are skipped.
func NewScheduler(ctx context.Context, sc Scraper, an Analyzer, n notifier.Notifier, jobs Jobs, logger logrus.FieldLogger) *Scheduler {
	if n == nil {
		n = notifier.Noop{}
	}
	cronLog := cron.PrintfLogger(logger)
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		Scraper:  sc,
		Analyzer: an,
		Notifier: n,
		Jobs:     jobs,
		Ctx:      ctx,
		Logger:   logger,
	}
}

// RegisterAll registers the scrape and analysis tasks.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.Cron.AddFunc(s.Jobs.ScrapeCron, s.scrapeTask); err != nil {
		return fmt.Errorf("register scrape task: %w", err)
	}
	if _, err := s.Cron.AddFunc(s.Jobs.AnalysisCron, s.analysisTask); err != nil {
		return fmt.Errorf("register analysis task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.WithFields(logrus.Fields{
		"scrape_cron":   s.Jobs.ScrapeCron,
		"analysis_cron": s.Jobs.AnalysisCron,
	}).Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunNow executes a scrape followed by an analysis (for RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.scrapeTask()
	s.analysisTask()
}

// LastReport returns the most recent analysis report, or nil.
func (s *Scheduler) LastReport() *model.AnalysisReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *Scheduler) scrapeTask() {
	log := s.Logger.WithField("job", "scrape")
	log.WithField("sources", s.Jobs.Sources).Info("running scrape task")

	results, err := s.Scraper.RunAll(s.Ctx, s.Jobs.Sources, s.Jobs.MaxPages)
	if err != nil {
		log.WithError(err).Error("scrape task")
	}
	runs := make([]*model.RunRecord, 0, len(results))
	for _, r := range results {
		if r != nil {
			runs = append(runs, r.Record)
		}
	}
	if len(runs) > 0 {
		s.trySend(notifier.FormatRunReport(runs))
	}
}

func (s *Scheduler) analysisTask() {
	log := s.Logger.WithField("job", "analysis")
	report, err := s.Analyzer.RunTrendAnalysis(s.Ctx, s.Jobs.LookbackDays, s.Jobs.DealThreshold)
	if errors.Is(err, analysis.ErrInProgress) {
		log.Warn("analysis already in progress, skipping")
		return
	}
	if err != nil {
		log.WithError(err).Error("analysis task")
		s.trySend(fmt.Sprintf("❌ Trend analysis failed: %v", err))
		return
	}
	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	msg := notifier.FormatTrendSummary(report)
	if deals := notifier.FormatTopDeals(report.TopDeals); deals != "" {
		msg += "\n" + deals
	}
	s.trySend(msg)
}

const helpText = "Available commands:\n• /stats\n• /trends\n• /scrape &lt;source&gt;"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	switch fields[0] {
	case "/stats":
		return notifier.FormatStats(s.Scraper.Stats())
	case "/trends":
		s.analysisTask()
		return ""
	case "/scrape":
		if len(fields) < 2 {
			return "Usage: /scrape &lt;source&gt;"
		}
		return s.scrapeSource(fields[1])
	default:
		return helpText
	}
}

// scrapeSource starts a single-source scrape in the background and reports when it ends.
func (s *Scheduler) scrapeSource(source string) string {
	known := false
	for _, src := range s.Jobs.Sources {
		known = known || src == source
	}
	if !known {
		return fmt.Sprintf("Unknown or disabled source: %s", source)
	}
	go func() {
		res, err := s.Scraper.Execute(s.Ctx, source, s.Jobs.MaxPages)
		if err != nil {
			s.Logger.WithError(err).WithField("source", source).Error("manual scrape")
			s.trySend(fmt.Sprintf("❌ Scrape %s failed: %v", source, err))
			return
		}
		s.trySend(notifier.FormatRunReport([]*model.RunRecord{res.Record}))
	}()
	return fmt.Sprintf("Scrape of %s started", source)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Logger.WithError(err).Error("send notification")
	}
}
