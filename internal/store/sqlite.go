package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"EstateSentinel/internal/model"
)

// SQLiteStore persists listings and run records to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logrus.FieldLogger
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, logger logrus.FieldLogger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read while a scrape is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if logger != nil {
		logger.WithField("path", dbPath).Info("sqlite store opened")
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			title          TEXT NOT NULL DEFAULT '',
			location       TEXT NOT NULL,
			price          INTEGER NOT NULL DEFAULT 0,
			area           REAL NOT NULL DEFAULT 0,
			price_per_area REAL,
			image_url      TEXT NOT NULL DEFAULT '',
			link           TEXT NOT NULL DEFAULT '',
			property_type  TEXT NOT NULL DEFAULT '',
			bedrooms       INTEGER,
			bathrooms      INTEGER,
			captured_at    INTEGER NOT NULL,
			source         TEXT NOT NULL,
			annotations    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_location ON listings(location)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_captured ON listings(captured_at)`,

		`CREATE TABLE IF NOT EXISTS scrape_runs (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			pages       INTEGER NOT NULL DEFAULT 0,
			listings    INTEGER NOT NULL DEFAULT 0,
			skipped     INTEGER NOT NULL DEFAULT 0,
			status      TEXT NOT NULL,
			stop_reason TEXT NOT NULL DEFAULT '',
			error       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON scrape_runs(started_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", q[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveListings(ctx context.Context, listings []model.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO listings
		(title, location, price, area, price_per_area, image_url, link, property_type,
		 bedrooms, bathrooms, captured_at, source, annotations)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range listings {
		l := &listings[i]
		blob, err := model.EncodeAnnotations(l.Annotations)
		if err != nil {
			return 0, err
		}
		res, err := stmt.ExecContext(ctx,
			l.Title, l.Location, l.Price, l.Area, l.PricePerArea, l.ImageURL, l.Link,
			l.PropertyType, l.Bedrooms, l.Bathrooms, l.CapturedAt.UnixMilli(), l.Source, string(blob),
		)
		if err != nil {
			return 0, fmt.Errorf("insert listing: %w", err)
		}
		if l.ID, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(listings), nil
}

func (s *SQLiteStore) LoadPriceSeries(ctx context.Context, since time.Time) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT captured_at, location, price_per_area
		FROM listings
		WHERE captured_at >= ? AND price_per_area IS NOT NULL
		ORDER BY captured_at, id`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query price series: %w", err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var (
			ts int64
			p  model.PricePoint
		)
		if err := rows.Scan(&ts, &p.Location, &p.PricePerArea); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.Timestamp = time.UnixMilli(ts).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) LoadLocationAverages(ctx context.Context, minCount int) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT location, AVG(price_per_area)
		FROM listings
		GROUP BY location
		HAVING COUNT(*) >= ?`, minCount)
	if err != nil {
		return nil, fmt.Errorf("query location averages: %w", err)
	}
	defer rows.Close()
	return scanAverages(rows)
}

func (s *SQLiteStore) LoadAllListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, location, price, area, price_per_area,
		image_url, link, property_type, bedrooms, bathrooms, captured_at, source, annotations
		FROM listings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var (
			l         model.Listing
			ppa       sql.NullFloat64
			bed, bath sql.NullInt64
			captured  int64
			blob      sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Title, &l.Location, &l.Price, &l.Area, &ppa,
			&l.ImageURL, &l.Link, &l.PropertyType, &bed, &bath, &captured, &l.Source, &blob); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.PricePerArea = nullFloat(ppa)
		l.Bedrooms = nullInt(bed)
		l.Bathrooms = nullInt(bath)
		l.CapturedAt = time.UnixMilli(captured).UTC()
		l.Annotations = decodeAnnotations([]byte(blob.String), l.ID, s.logger)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) UpdateListingAnnotations(ctx context.Context, id int64, ann model.Annotations) error {
	blob, err := model.EncodeAnnotations(ann)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE listings SET annotations = ? WHERE id = ?`, string(blob), id)
	if err != nil {
		return fmt.Errorf("update annotations: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO scrape_runs
		(id, source, started_at, finished_at, pages, listings, skipped, status, stop_reason, error)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.Source, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Pages, run.Listings, run.Skipped, string(run.Status), run.StopReason, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, started_at, finished_at, pages, listings,
		skipped, status, stop_reason, error
		FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			r                 model.RunRecord
			started, finished int64
			status            string
		)
		if err := rows.Scan(&r.ID, &r.Source, &started, &finished, &r.Pages, &r.Listings,
			&r.Skipped, &status, &r.StopReason, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.logger != nil {
		s.logger.Info("closing sqlite store")
	}
	return s.db.Close()
}

func scanAverages(rows *sql.Rows) (map[string]float64, error) {
	avgs := make(map[string]float64)
	for rows.Next() {
		var (
			loc string
			avg sql.NullFloat64
		)
		if err := rows.Scan(&loc, &avg); err != nil {
			return nil, fmt.Errorf("scan average: %w", err)
		}
		if avg.Valid {
			avgs[loc] = avg.Float64
		}
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return avgs, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
