package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"EstateSentinel/internal/collector"
	"EstateSentinel/internal/logging"
	"EstateSentinel/internal/model"
	"EstateSentinel/internal/pacing"
	"EstateSentinel/internal/stats"
	"EstateSentinel/internal/store"
)

// ErrInvalidMaxPages is returned when the caller's page ceiling is not positive.
var ErrInvalidMaxPages = errors.New("max_pages must be positive")

// Stop reasons recorded on a run.
const (
	StopInvalidResponse = "invalid_response"
	StopEmptyPage       = "empty_page"
	StopExhausted       = "exhausted"
	StopNoMorePages     = "no_more_pages"
	StopMaxPages        = "max_pages"
	StopFetchError      = "fetch_error"
	StopStoreError      = "store_error"
	StopCancelled       = "cancelled"
)

// Options tunes retry, pacing and fan-out.
type Options struct {
	// MaxRetries is the number of extra attempts for a failed page fetch.
	MaxRetries   int
	RetryBackoff time.Duration
	// Concurrency bounds how many sources RunAll scrapes at once. Zero means unbounded.
	Concurrency int
	// Sleep replaces the real pause between pages and retries. Tests use it to skip waiting.
	Sleep pacing.Sleeper
}

// Result is the outcome of one run over a single source.
type Result struct {
	Listings []model.Listing
	Record   *model.RunRecord
}

// Orchestrator drives adapters through paginated runs.
type Orchestrator struct {
	registry *collector.Registry
	store    store.Store
	stats    *stats.Tracker
	logger   logrus.FieldLogger
	opts     Options
}

func New(registry *collector.Registry, st store.Store, tracker *stats.Tracker, logger logrus.FieldLogger, opts Options) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	if tracker == nil {
		tracker = stats.NewTracker()
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = pacing.Sleep
	}
	return &Orchestrator{registry: registry, store: st, stats: tracker, logger: logger, opts: opts}
}

// Run scrapes one source and returns every listing it produced.
// Only contract errors are returned; fetch and storage failures end the run early
// and are reported through the run record and the statistics.
func (o *Orchestrator) Run(ctx context.Context, source string, maxPages int) ([]model.Listing, error) {
	res, err := o.Execute(ctx, source, maxPages)
	if err != nil {
		return nil, err
	}
	return res.Listings, nil
}

// Stats returns a snapshot of the cumulative run counters.
func (o *Orchestrator) Stats() model.RunStats {
	return o.stats.Snapshot()
}

// Sources lists the registered source names.
func (o *Orchestrator) Sources() []string {
	return o.registry.Names()
}

// RunAll scrapes the given sources on independent workers.
// Results are returned in the order of sources; a source with a contract error has a nil entry.
func (o *Orchestrator) RunAll(ctx context.Context, sources []string, maxPages int) ([]*Result, error) {
	results := make([]*Result, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	if o.opts.Concurrency > 0 {
		g.SetLimit(o.opts.Concurrency)
	}
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			res, err := o.Execute(ctx, src, maxPages)
			results[i], errs[i] = res, err
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// Execute scrapes one source and returns its listings together with the run record.
func (o *Orchestrator) Execute(ctx context.Context, source string, maxPages int) (*Result, error) {
	if maxPages <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxPages, maxPages)
	}
	adapter, err := o.registry.Get(source)
	if err != nil {
		return nil, err
	}

	rec := &model.RunRecord{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
		Status:    model.RunStatusCompleted,
	}
	log := o.logger.WithFields(logrus.Fields{"source": source, "run_id": rec.ID})
	log.WithField("max_pages", maxPages).Info("scrape run started")

	listings := o.paginate(ctx, adapter, maxPages, rec, log)

	rec.FinishedAt = time.Now().UTC()
	rec.Listings = len(listings)
	if rec.Status == model.RunStatusCompleted && len(listings) == 0 {
		rec.Status = model.RunStatusEmpty
	}

	// Recording must survive a cancelled run context.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.store.RecordRun(recordCtx, rec); err != nil {
		log.WithError(err).Error("failed to record run")
	}
	o.stats.Record(rec)

	log.WithFields(logrus.Fields{
		"pages":       rec.Pages,
		"listings":    rec.Listings,
		"skipped":     rec.Skipped,
		"status":      rec.Status,
		"stop_reason": rec.StopReason,
		"duration":    rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond),
	}).Info("scrape run finished")

	return &Result{Listings: listings, Record: rec}, nil
}

func (o *Orchestrator) paginate(ctx context.Context, adapter collector.Adapter, maxPages int, rec *model.RunRecord, log logrus.FieldLogger) []model.Listing {
	minDelay, maxDelay := adapter.DelayRange()
	delay := pacing.Delay{Min: minDelay, Max: maxDelay}
	retry := &pacing.Retry{
		MaxRetries: o.opts.MaxRetries,
		BaseDelay:  o.opts.RetryBackoff,
		Sleep:      o.opts.Sleep,
		Logger:     log,
		Retryable:  func(err error) bool { return !errors.Is(err, collector.ErrInvalidResponse) },
	}
	seen := newLinkSet()
	pageSize := adapter.PageSize()

	var listings []model.Listing
	abort := func(reason string, err error) {
		rec.StopReason = reason
		rec.Error = err.Error()
		if len(listings) > 0 {
			rec.Status = model.RunStatusPartial
		} else {
			rec.Status = model.RunStatusFailed
		}
	}

	for page := 1; ; page++ {
		plog := log.WithField("page", page)

		if page > 1 {
			if err := delay.Wait(ctx, o.opts.Sleep); err != nil {
				plog.WithError(err).Warn("run cancelled during page delay")
				abort(StopCancelled, err)
				return listings
			}
		}

		var p *collector.Page
		err := retry.Do(ctx, fmt.Sprintf("%s page %d", adapter.Name(), page), func(ctx context.Context) error {
			var ferr error
			p, ferr = adapter.FetchPage(ctx, page)
			return ferr
		})
		switch {
		case errors.Is(err, collector.ErrInvalidResponse), err == nil && p == nil:
			plog.WithError(err).Warn("invalid response, stopping")
			rec.StopReason = StopInvalidResponse
			return listings
		case ctx.Err() != nil:
			plog.WithError(ctx.Err()).Warn("run cancelled")
			abort(StopCancelled, ctx.Err())
			return listings
		case err != nil:
			plog.WithError(err).Error("page fetch failed, aborting run")
			abort(StopFetchError, err)
			return listings
		}
		rec.Pages++

		if len(p.Items) == 0 {
			plog.Info("empty page, stopping")
			rec.StopReason = StopEmptyPage
			return listings
		}

		batch := o.normalizePage(adapter, p.Items, seen, rec, plog)
		if len(batch) > 0 {
			if _, err := o.store.SaveListings(ctx, batch); err != nil {
				plog.WithError(err).Error("failed to save page, aborting run")
				abort(StopStoreError, err)
				return listings
			}
			listings = append(listings, batch...)
		}
		plog.WithFields(logrus.Fields{"items": len(p.Items), "saved": len(batch), "total": p.Total}).Debug("page processed")

		switch {
		case p.Total != collector.TotalUnknown && page*pageSize >= p.Total:
			rec.StopReason = StopExhausted
			return listings
		case !p.HasMore:
			rec.StopReason = StopNoMorePages
			return listings
		case page >= maxPages:
			rec.StopReason = StopMaxPages
			return listings
		}
	}
}

func (o *Orchestrator) normalizePage(adapter collector.Adapter, items []collector.RawItem, seen *linkSet, rec *model.RunRecord, log logrus.FieldLogger) []model.Listing {
	batch := make([]model.Listing, 0, len(items))
	for i, raw := range items {
		l, err := normalizeSafely(adapter, raw)
		if err != nil || l == nil {
			rec.Skipped++
			log.WithField("item", i).WithError(err).Warn("skipping malformed item")
			continue
		}
		if !seen.Add(l.Link) {
			rec.Skipped++
			log.WithField("link", l.Link).Debug("skipping duplicate listing")
			continue
		}
		batch = append(batch, *l)
	}
	return batch
}

// normalizeSafely contains a panicking adapter to the item being parsed.
func normalizeSafely(adapter collector.Adapter, raw collector.RawItem) (l *model.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			l, err = nil, fmt.Errorf("normalize panicked: %v", r)
		}
	}()
	return adapter.Normalize(raw)
}
