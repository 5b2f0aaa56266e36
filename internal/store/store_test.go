package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"EstateSentinel/internal/logging"
	"EstateSentinel/internal/model"
)

func newListing(loc string, price int64, area float64, at time.Time) model.Listing {
	l := model.Listing{
		Title:      "flat",
		Location:   loc,
		Price:      price,
		Area:       area,
		Link:       "https://example.com/" + loc,
		CapturedAt: at,
		Source:     "chotot",
	}
	l.Normalize()
	return l
}

// openStores returns every implementation that runs without external services.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{"sqlite": sq, "memory": NewMemoryStore()}
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			batch := []model.Listing{
				newListing("Q1", 1000, 10, now.Add(-48*time.Hour)),
				newListing("Q1", 2000, 10, now.Add(-time.Hour)),
				newListing("Q2", 500, 0, now),
			}
			batch[0].Annotations.Extra = map[string]any{"ad_id": "42"}

			n, err := s.SaveListings(ctx, batch)
			if err != nil || n != 3 {
				t.Fatalf("SaveListings: n=%d err=%v", n, err)
			}
			if batch[0].ID == 0 || batch[0].ID == batch[1].ID {
				t.Errorf("expected distinct assigned IDs, got %d and %d", batch[0].ID, batch[1].ID)
			}

			all, err := s.LoadAllListings(ctx)
			if err != nil {
				t.Fatalf("LoadAllListings: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("expected 3 listings, got %d", len(all))
			}
			if all[2].PricePerArea != nil {
				t.Errorf("expected nil price_per_area for zero area, got %v", *all[2].PricePerArea)
			}
			if all[0].Annotations.Extra["ad_id"] != "42" {
				t.Errorf("expected passthrough annotation to survive, got %v", all[0].Annotations.Extra)
			}
			if !all[1].CapturedAt.Equal(now.Add(-time.Hour)) {
				t.Errorf("captured_at: expected %v, got %v", now.Add(-time.Hour), all[1].CapturedAt)
			}

			points, err := s.LoadPriceSeries(ctx, now.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("LoadPriceSeries: %v", err)
			}
			if len(points) != 1 || points[0].PricePerArea != 200 {
				t.Errorf("expected one point at 200, got %+v", points)
			}
		})
	}
}

func TestStore_LocationAverages(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			var batch []model.Listing
			for _, p := range []int64{80, 90, 100, 110, 120} {
				batch = append(batch, newListing("big", p, 1, now))
			}
			for _, p := range []int64{10, 20, 30, 40} {
				batch = append(batch, newListing("small", p, 1, now))
			}
			if _, err := s.SaveListings(ctx, batch); err != nil {
				t.Fatalf("SaveListings: %v", err)
			}

			avgs, err := s.LoadLocationAverages(ctx, 5)
			if err != nil {
				t.Fatalf("LoadLocationAverages: %v", err)
			}
			if math.Abs(avgs["big"]-100) > 1e-9 {
				t.Errorf("big: expected 100, got %v", avgs["big"])
			}
			if _, ok := avgs["small"]; ok {
				t.Error("location with 4 listings must not have a qualifying average")
			}
		})
	}
}

func TestStore_UpdateAnnotations(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			batch := []model.Listing{newListing("Q1", 70, 1, time.Now())}
			if _, err := s.SaveListings(ctx, batch); err != nil {
				t.Fatalf("SaveListings: %v", err)
			}

			ann := batch[0].Annotations
			ann.SetDeal(30, 100)
			if err := s.UpdateListingAnnotations(ctx, batch[0].ID, ann); err != nil {
				t.Fatalf("UpdateListingAnnotations: %v", err)
			}

			all, _ := s.LoadAllListings(ctx)
			if !all[0].Annotations.IsDeal() || all[0].Annotations.Deal.Score != 30 {
				t.Errorf("expected deal with score 30, got %+v", all[0].Annotations.Deal)
			}

			err := s.UpdateListingAnnotations(ctx, 9999, ann)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for i, src := range []string{"chotot", "batdongsan", "chotot"} {
				run := &model.RunRecord{
					ID:         src + string(rune('a'+i)),
					Source:     src,
					StartedAt:  base.Add(time.Duration(i) * time.Minute),
					FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
					Pages:      i + 1,
					Listings:   10 * i,
					Status:     model.RunStatusCompleted,
				}
				if err := s.RecordRun(ctx, run); err != nil {
					t.Fatalf("RecordRun: %v", err)
				}
			}

			runs, err := s.ListRuns(ctx, 2)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if len(runs) != 2 {
				t.Fatalf("expected 2 runs, got %d", len(runs))
			}
			if runs[0].Pages != 3 || runs[1].Pages != 2 {
				t.Errorf("expected newest first, got pages %d then %d", runs[0].Pages, runs[1].Pages)
			}
			if runs[0].Status != model.RunStatusCompleted {
				t.Errorf("status: expected completed, got %s", runs[0].Status)
			}
		})
	}
}

func TestSQLiteStore_UnparsableAnnotationsTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	batch := []model.Listing{newListing("Q1", 100, 1, time.Now())}
	if _, err := s.SaveListings(ctx, batch); err != nil {
		t.Fatalf("SaveListings: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE listings SET annotations = '{not json' WHERE id = ?`, batch[0].ID); err != nil {
		t.Fatalf("corrupt annotations: %v", err)
	}

	all, err := s.LoadAllListings(ctx)
	if err != nil {
		t.Fatalf("LoadAllListings: %v", err)
	}
	if all[0].Annotations.IsDeal() || len(all[0].Annotations.Extra) != 0 {
		t.Errorf("expected empty annotations, got %+v", all[0].Annotations)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mongo", "", "", nil); err == nil {
		t.Error("expected error for unknown driver")
	}
}
