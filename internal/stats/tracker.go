package stats

import (
	"maps"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/model"
)

// Tracker accumulates orchestrator run statistics. All updates are serialized.
type Tracker struct {
	mu       sync.Mutex
	state    *model.RunStats
	filePath string
	logger   logrus.FieldLogger
}

// NewTracker creates an in-memory tracker.
func NewTracker() *Tracker {
	t := &Tracker{state: &model.RunStats{}}
	t.init()
	return t
}

// NewPersistentTracker loads prior counters from filePath and saves after every update.
func NewPersistentTracker(filePath string, logger logrus.FieldLogger) (*Tracker, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, err
	}
	t := &Tracker{state: state, filePath: filePath, logger: logger}
	t.init()
	if err := t.save(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) init() {
	if t.state.PerSourceCounts == nil {
		t.state.PerSourceCounts = make(map[string]int)
	}
	if t.state.LastRunBySource == nil {
		t.state.LastRunBySource = make(map[string]time.Time)
	}
	if t.state.StartedAt.IsZero() {
		t.state.StartedAt = time.Now().UTC()
	}
}

// Record folds one finished run into the counters.
func (t *Tracker) Record(run *model.RunRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.TotalRuns++
	if run.Successful() {
		t.state.SuccessfulRuns++
	}
	t.state.PerSourceCounts[run.Source] += run.Listings
	t.state.LastRunBySource[run.Source] = run.FinishedAt
	t.state.LastRunAt = run.FinishedAt

	if err := t.save(); err != nil && t.logger != nil {
		t.logger.WithError(err).Error("failed to save run stats")
	}
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() model.RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := *t.state
	s.PerSourceCounts = maps.Clone(t.state.PerSourceCounts)
	s.LastRunBySource = maps.Clone(t.state.LastRunBySource)
	return s
}

func (t *Tracker) save() error {
	if t.filePath == "" {
		return nil
	}
	return SaveState(t.filePath, t.state)
}
