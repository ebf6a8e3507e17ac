package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/tendant/simple-photo-pipeline/internal/logging"
)

// SQLTracker stores the export ledger in Postgres
type SQLTracker struct {
	db     *sql.DB
	logger logging.Logger
}

// OpenSQLTracker connects to dsn with the lib/pq driver and prepares the table
func OpenSQLTracker(ctx context.Context, dsn string, logger logging.Logger) (*SQLTracker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach ledger database: %w", err)
	}

	tracker, err := NewSQLTracker(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return tracker, nil
}

// NewSQLTracker wraps an open database and creates the ledger table if needed
func NewSQLTracker(ctx context.Context, db *sql.DB, logger logging.Logger) (*SQLTracker, error) {
	tracker := &SQLTracker{db: db, logger: logger}

	if err := tracker.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure export ledger table: %w", err)
	}
	return tracker, nil
}

func (t *SQLTracker) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS photo_export_ledger (
			photo_key TEXT PRIMARY KEY,
			location TEXT,
			filter_version INTEGER,
			first_seen_at TIMESTAMPTZ DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ DEFAULT NOW(),
			seen_count INTEGER DEFAULT 1
		)
	`

	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create photo_export_ledger table: %w", err)
	}

	t.logger.Debug("Export ledger table ready", "table", "photo_export_ledger")
	return nil
}

// Record upserts the ledger row for key and returns the new seen count
func (t *SQLTracker) Record(ctx context.Context, key, location string, filterVersion int) (int, error) {
	query := `
		INSERT INTO photo_export_ledger (photo_key, location, filter_version, first_seen_at, last_seen_at, seen_count)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		ON CONFLICT (photo_key) DO UPDATE
		SET last_seen_at = NOW(),
		    seen_count = photo_export_ledger.seen_count + 1,
		    location = EXCLUDED.location,
		    filter_version = EXCLUDED.filter_version
		RETURNING seen_count
	`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, key, location, filterVersion).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record export: %w", err)
	}
	return seenCount, nil
}

func (t *SQLTracker) SeenCount(ctx context.Context, key string) (int, error) {
	query := `SELECT seen_count FROM photo_export_ledger WHERE photo_key = $1`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, key).Scan(&seenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}
	return seenCount, nil
}

// Close closes the underlying database
func (t *SQLTracker) Close() error {
	return t.db.Close()
}
