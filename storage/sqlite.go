package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zaneriley/Home-Hunter/models"
)

// SQLiteStore is the default seen backend and always the operational
// store for run history and cycle logs.
type SQLiteStore struct {
	db *sql.DB
}

var _ SeenStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &PersistenceError{Op: "create db dir", Err: err}
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &PersistenceError{Op: "open sqlite", Err: err}
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "migrate", Err: err}
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate errors on a corrupt database file, which keeps a damaged seen
// set from silently passing for an empty one. A missing file is a fresh
// first run and gets the schema created.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_listings (
		url TEXT PRIMARY KEY,
		first_seen_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hunt_runs (
		id INTEGER PRIMARY KEY,
		uid TEXT NOT NULL,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		listings_new INTEGER DEFAULT 0,
		notified INTEGER DEFAULT 0,
		undelivered INTEGER DEFAULT 0,
		anomalies INTEGER DEFAULT 0,
		note TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS hunt_logs (
		id INTEGER PRIMARY KEY,
		run_uid TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_uid ON hunt_runs(uid);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON hunt_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON hunt_logs(run_uid, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Contains(ctx context.Context, url string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM seen_listings WHERE url = ? LIMIT 1`, url).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: "contains", Err: err}
	}
	return true, nil
}

func (s *SQLiteStore) MarkSeen(ctx context.Context, url string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO seen_listings (url, first_seen_at)
		VALUES (?, ?)`, url, at)
	if err != nil {
		return &PersistenceError{Op: "mark seen", Err: err}
	}
	return nil
}

func (s *SQLiteStore) CountSeen(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_listings`).Scan(&count)
	if err != nil {
		return 0, &PersistenceError{Op: "count seen", Err: err}
	}
	return count, nil
}

func (s *SQLiteStore) RecentSeen(ctx context.Context, limit int) ([]models.SeenListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, first_seen_at FROM seen_listings
		ORDER BY first_seen_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "recent seen", Err: err}
	}
	defer rows.Close()

	var listings []models.SeenListing
	for rows.Next() {
		var l models.SeenListing
		if err := rows.Scan(&l.URL, &l.FirstSeenAt); err != nil {
			return nil, &PersistenceError{Op: "recent seen", Err: err}
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "recent seen", Err: err}
	}
	return listings, nil
}

// Run history and cycle logs are best-effort operational data; their
// errors are returned plain so callers can log and move on.

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.HuntRun) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO hunt_runs (uid, site_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.UID, run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.HuntRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE hunt_runs SET finished_at = ?, status = ?, listings_found = ?,
			listings_new = ?, notified = ?, undelivered = ?, anomalies = ?, note = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsNew,
		run.Notified, run.Undelivered, run.Anomalies, run.Note, run.ID)
	return err
}

func (s *SQLiteStore) Log(ctx context.Context, runUID string, level models.LogLevel, message, siteID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hunt_logs (run_uid, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runUID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) RunLogs(ctx context.Context, runUID string, limit int) ([]models.HuntLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_uid, timestamp, level, message, site_id
		FROM hunt_logs WHERE run_uid = ? ORDER BY timestamp, id LIMIT ?`, runUID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.HuntLog
	for rows.Next() {
		var entry models.HuntLog
		if err := rows.Scan(&entry.ID, &entry.RunUID, &entry.Timestamp,
			&entry.Level, &entry.Message, &entry.SiteID); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) LastRun(ctx context.Context, siteID string) (*models.HuntRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uid, site_id, started_at, finished_at, status, listings_found,
			listings_new, notified, undelivered, anomalies, note
		FROM hunt_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1`, siteID)

	var run models.HuntRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.UID, &run.SiteID, &run.StartedAt, &finished, &run.Status,
		&run.ListingsFound, &run.ListingsNew, &run.Notified, &run.Undelivered, &run.Anomalies, &run.Note)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}
