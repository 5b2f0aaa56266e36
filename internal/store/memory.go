package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"EstateSentinel/internal/model"
)

// MemoryStore keeps everything in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	listings []model.Listing
	runs     []model.RunRecord
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) SaveListings(_ context.Context, listings []model.Listing) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range listings {
		m.nextID++
		listings[i].ID = m.nextID
		m.listings = append(m.listings, cloneListing(listings[i]))
	}
	return len(listings), nil
}

func (m *MemoryStore) LoadPriceSeries(_ context.Context, since time.Time) ([]model.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var points []model.PricePoint
	for _, l := range m.listings {
		if l.PricePerArea == nil || l.CapturedAt.Before(since) {
			continue
		}
		points = append(points, model.PricePoint{
			Timestamp:    l.CapturedAt,
			Location:     l.Location,
			PricePerArea: *l.PricePerArea,
		})
	}
	slices.SortStableFunc(points, func(a, b model.PricePoint) int { return a.Timestamp.Compare(b.Timestamp) })
	return points, nil
}

func (m *MemoryStore) LoadLocationAverages(_ context.Context, minCount int) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type acc struct {
		count, priced int
		sum           float64
	}
	byLoc := make(map[string]*acc)
	for _, l := range m.listings {
		a := byLoc[l.Location]
		if a == nil {
			a = &acc{}
			byLoc[l.Location] = a
		}
		a.count++
		if l.PricePerArea != nil {
			a.priced++
			a.sum += *l.PricePerArea
		}
	}
	avgs := make(map[string]float64)
	for loc, a := range byLoc {
		if a.count >= minCount && a.priced > 0 {
			avgs[loc] = a.sum / float64(a.priced)
		}
	}
	return avgs, nil
}

func (m *MemoryStore) LoadAllListings(_ context.Context) ([]model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Listing, len(m.listings))
	for i, l := range m.listings {
		out[i] = cloneListing(l)
	}
	return out, nil
}

func (m *MemoryStore) UpdateListingAnnotations(_ context.Context, id int64, ann model.Annotations) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.listings {
		if m.listings[i].ID == id {
			m.listings[i].Annotations = cloneAnnotations(ann)
			return nil
		}
	}
	return fmt.Errorf("listing %d: %w", id, ErrNotFound)
}

func (m *MemoryStore) RecordRun(_ context.Context, run *model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return nil
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := slices.Clone(m.runs)
	slices.SortStableFunc(runs, func(a, b model.RunRecord) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryStore) Close() error { return nil }

func cloneListing(l model.Listing) model.Listing {
	l.Annotations = cloneAnnotations(l.Annotations)
	return l
}

func cloneAnnotations(a model.Annotations) model.Annotations {
	out := model.Annotations{}
	if a.Deal != nil {
		d := *a.Deal
		out.Deal = &d
	}
	if a.Extra != nil {
		out.Extra = maps.Clone(a.Extra)
	}
	return out
}
