package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/lock"
	"EstateSentinel/internal/logging"
	"EstateSentinel/internal/model"
	"EstateSentinel/internal/store"
)

var (
	// ErrInProgress is returned when another analysis holds the lock.
	ErrInProgress = errors.New("analysis already in progress")
	// ErrInvalidParams is returned for a non-positive lookback or a threshold outside (0, 1].
	ErrInvalidParams = errors.New("invalid analysis parameters")
)

// LockKey is the lock name shared by every analysis runner.
const LockKey = "analysis"

// DefaultLookbackDays is the trend window used when none is configured.
const DefaultLookbackDays = 30

// Options configures an Analyzer.
type Options struct {
	MinLocationListings int
	TopDeals            int
}

// Analyzer runs trend estimation followed by deal flagging.
type Analyzer struct {
	store  store.Store
	locker lock.Locker
	logger logrus.FieldLogger
	opts   Options
	now    func() time.Time
}

func NewAnalyzer(st store.Store, locker lock.Locker, logger logrus.FieldLogger, opts Options) *Analyzer {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.MinLocationListings <= 0 {
		opts.MinLocationListings = DefaultMinLocationListings
	}
	return &Analyzer{store: st, locker: locker, logger: logger, opts: opts, now: time.Now}
}

// RunTrendAnalysis recomputes every location trend over the lookback window and
// re-flags deals. Only one analysis may run at a time. Storage failures in one
// stage are logged, listed in the report and leave that stage empty.
func (a *Analyzer) RunTrendAnalysis(ctx context.Context, lookbackDays int, threshold float64) (*model.AnalysisReport, error) {
	if lookbackDays <= 0 || threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: lookback_days=%d deal_threshold=%v", ErrInvalidParams, lookbackDays, threshold)
	}

	release, err := a.locker.TryLock(ctx, LockKey)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, ErrInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire analysis lock: %w", err)
	}
	defer release()

	report := &model.AnalysisReport{
		Trends:    map[string]model.TrendRecord{},
		StartedAt: a.now().UTC(),
	}
	log := a.logger.WithFields(logrus.Fields{"job": "analysis", "lookback_days": lookbackDays, "deal_threshold": threshold})
	log.Info("trend analysis started")

	// Step a: trends over the lookback window
	since := report.StartedAt.Add(-time.Duration(lookbackDays) * day)
	points, err := a.store.LoadPriceSeries(ctx, since)
	if err != nil {
		log.WithError(err).Error("failed to load price series")
		report.Errors = append(report.Errors, "price series: "+err.Error())
	} else {
		report.Trends = EstimateTrends(points, log)
	}

	// Step b: summary derived from the same trends
	report.Summary = Summarize(report.Trends)

	// Step c: deal flags over the full history
	deals, err := FlagDeals(ctx, a.store, threshold, a.opts.MinLocationListings, log)
	if err != nil {
		log.WithError(err).Error("deal flagging failed")
		report.Errors = append(report.Errors, "deals: "+err.Error())
	} else {
		report.DealsFlagged = deals.Flagged
		report.DealsCleared = deals.Cleared
		report.ListingsEvaluated = deals.Evaluated
		report.TopDeals = deals.Deals
		if a.opts.TopDeals > 0 && len(report.TopDeals) > a.opts.TopDeals {
			report.TopDeals = report.TopDeals[:a.opts.TopDeals]
		}
	}

	report.FinishedAt = a.now().UTC()
	log.WithFields(logrus.Fields{
		"locations":     len(report.Trends),
		"deals_flagged": report.DealsFlagged,
		"direction":     report.Summary.MarketDirection,
		"duration":      report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	}).Info("trend analysis finished")
	return report, nil
}
