package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/model"
)

// ErrNotFound is returned when an update targets a listing that does not exist.
var ErrNotFound = errors.New("listing not found")

// Store is the persistence gateway used by the orchestrator and the analysis jobs.
type Store interface {
	// SaveListings appends listings and assigns their IDs in place.
	SaveListings(ctx context.Context, listings []model.Listing) (int, error)
	// LoadPriceSeries returns every observation with a price-per-area captured at or after since.
	LoadPriceSeries(ctx context.Context, since time.Time) ([]model.PricePoint, error)
	// LoadLocationAverages returns the mean price-per-area of each location with at least minCount listings.
	LoadLocationAverages(ctx context.Context, minCount int) (map[string]float64, error)
	LoadAllListings(ctx context.Context) ([]model.Listing, error)
	UpdateListingAnnotations(ctx context.Context, id int64, ann model.Annotations) error
	RecordRun(ctx context.Context, run *model.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	Close() error
}

// Open builds the store selected by driver ("sqlite", "postgres" or "memory").
func Open(ctx context.Context, driver, sqlitePath, postgresDSN string, logger logrus.FieldLogger) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLiteStore(sqlitePath, logger)
	case "postgres":
		return NewPostgresStore(ctx, postgresDSN, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// decodeAnnotations treats an unparsable blob as an empty record.
func decodeAnnotations(blob []byte, id int64, logger logrus.FieldLogger) model.Annotations {
	ann, err := model.DecodeAnnotations(blob)
	if err != nil {
		if logger != nil {
			logger.WithError(err).WithField("listing_id", id).Warn("unparsable annotations, treating as empty")
		}
		return model.Annotations{}
	}
	return ann
}
