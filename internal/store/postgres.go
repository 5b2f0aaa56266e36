package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/model"
)

const (
	pgPingAttempts = 10
	pgPingInterval = 2 * time.Second
	pgBatchSize    = 50
	pgListingCols  = 13
)

// PostgresStore persists listings and run records to PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// NewPostgresStore connects, waits for the server to accept pings and runs migrations.
func NewPostgresStore(ctx context.Context, dsn string, logger logrus.FieldLogger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < pgPingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(pgPingInterval):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	if logger != nil {
		logger.Info("postgres store opened")
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id             BIGSERIAL PRIMARY KEY,
			title          TEXT             NOT NULL DEFAULT '',
			location       TEXT             NOT NULL,
			price          BIGINT           NOT NULL DEFAULT 0,
			area           DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_per_area DOUBLE PRECISION,
			image_url      TEXT             NOT NULL DEFAULT '',
			link           TEXT             NOT NULL DEFAULT '',
			property_type  TEXT             NOT NULL DEFAULT '',
			bedrooms       INTEGER,
			bathrooms      INTEGER,
			captured_at    TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			source         VARCHAR(50)      NOT NULL,
			annotations    JSONB
		);

		CREATE INDEX IF NOT EXISTS idx_listings_location ON listings(location);
		CREATE INDEX IF NOT EXISTS idx_listings_captured ON listings(captured_at);

		CREATE TABLE IF NOT EXISTS scrape_runs (
			id          TEXT PRIMARY KEY,
			source      VARCHAR(50) NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			pages       INTEGER     NOT NULL DEFAULT 0,
			listings    INTEGER     NOT NULL DEFAULT 0,
			skipped     INTEGER     NOT NULL DEFAULT 0,
			status      VARCHAR(20) NOT NULL,
			stop_reason TEXT        NOT NULL DEFAULT '',
			error       TEXT        NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON scrape_runs(started_at);
	`)
	return err
}

// SaveListings batch-inserts listings inside one transaction.
func (s *PostgresStore) SaveListings(ctx context.Context, listings []model.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	for i := 0; i < len(listings); i += pgBatchSize {
		end := min(i+pgBatchSize, len(listings))
		if err := insertBatch(ctx, tx, listings[i:end]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return len(listings), nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, batch []model.Listing) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*pgListingCols)

	for idx := range batch {
		l := &batch[idx]
		blob, err := model.EncodeAnnotations(l.Annotations)
		if err != nil {
			return err
		}
		placeholders := make([]string, pgListingCols)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*pgListingCols+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			l.Title, l.Location, l.Price, l.Area, l.PricePerArea, l.ImageURL, l.Link,
			l.PropertyType, l.Bedrooms, l.Bathrooms, l.CapturedAt, l.Source, string(blob))
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (title, location, price, area, price_per_area, image_url, link,
			property_type, bedrooms, bathrooms, captured_at, source, annotations)
		VALUES %s
		RETURNING id
	`, strings.Join(valueStrings, ","))

	rows, err := tx.QueryContext(ctx, query, valueArgs...)
	if err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	defer rows.Close()

	// Rows are returned in VALUES order.
	for i := 0; rows.Next() && i < len(batch); i++ {
		if err := rows.Scan(&batch[i].ID); err != nil {
			return fmt.Errorf("postgres: scan id: %w", err)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) LoadPriceSeries(ctx context.Context, since time.Time) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT captured_at, location, price_per_area
		FROM listings
		WHERE captured_at >= $1 AND price_per_area IS NOT NULL
		ORDER BY captured_at, id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: price series: %w", err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Timestamp, &p.Location, &p.PricePerArea); err != nil {
			return nil, fmt.Errorf("postgres: scan price point: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *PostgresStore) LoadLocationAverages(ctx context.Context, minCount int) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT location, AVG(price_per_area)
		FROM listings
		GROUP BY location
		HAVING COUNT(*) >= $1
	`, minCount)
	if err != nil {
		return nil, fmt.Errorf("postgres: location averages: %w", err)
	}
	defer rows.Close()
	return scanAverages(rows)
}

func (s *PostgresStore) LoadAllListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, location, price, area, price_per_area, image_url, link,
			property_type, bedrooms, bathrooms, captured_at, source, annotations
		FROM listings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var (
			l         model.Listing
			ppa       sql.NullFloat64
			bed, bath sql.NullInt64
			blob      []byte
		)
		if err := rows.Scan(&l.ID, &l.Title, &l.Location, &l.Price, &l.Area, &ppa,
			&l.ImageURL, &l.Link, &l.PropertyType, &bed, &bath, &l.CapturedAt, &l.Source, &blob); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l.PricePerArea = nullFloat(ppa)
		l.Bedrooms = nullInt(bed)
		l.Bathrooms = nullInt(bath)
		l.CapturedAt = l.CapturedAt.UTC()
		l.Annotations = decodeAnnotations(blob, l.ID, s.logger)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) UpdateListingAnnotations(ctx context.Context, id int64, ann model.Annotations) error {
	blob, err := model.EncodeAnnotations(ann)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE listings SET annotations = $1 WHERE id = $2`, string(blob), id)
	if err != nil {
		return fmt.Errorf("postgres: update annotations: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs
			(id, source, started_at, finished_at, pages, listings, skipped, status, stop_reason, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, run.ID, run.Source, run.StartedAt, run.FinishedAt, run.Pages, run.Listings,
		run.Skipped, string(run.Status), run.StopReason, run.Error)
	if err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, started_at, finished_at, pages, listings, skipped, status, stop_reason, error
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			r      model.RunRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.StartedAt, &r.FinishedAt, &r.Pages, &r.Listings,
			&r.Skipped, &status, &r.StopReason, &r.Error); err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
