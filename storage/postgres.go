package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zaneriley/Home-Hunter/models"
)

// PostgresSeenStore keeps the seen set in Postgres for deployments that
// already run one. Run history stays in SQLite either way.
type PostgresSeenStore struct {
	pool *pgxpool.Pool
}

var _ SeenStore = (*PostgresSeenStore)(nil)

func NewPostgresSeenStore(ctx context.Context, connString string) (*PostgresSeenStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, &PersistenceError{Op: "parse postgres config", Err: err}
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, &PersistenceError{Op: "create postgres pool", Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &PersistenceError{Op: "ping postgres", Err: err}
	}

	store := &PostgresSeenStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, &PersistenceError{Op: "migrate postgres", Err: err}
	}

	return store, nil
}

func (s *PostgresSeenStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS seen_listings (
			url TEXT PRIMARY KEY,
			first_seen_at TIMESTAMPTZ NOT NULL
		)`)
	return err
}

func (s *PostgresSeenStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresSeenStore) Contains(ctx context.Context, url string) (bool, error) {
	var exists int
	err := s.pool.QueryRow(ctx, `
		SELECT 1 FROM seen_listings WHERE url = $1 LIMIT 1`, url).Scan(&exists)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: "contains", Err: err}
	}
	return true, nil
}

func (s *PostgresSeenStore) MarkSeen(ctx context.Context, url string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO seen_listings (url, first_seen_at)
		VALUES ($1, $2)
		ON CONFLICT (url) DO NOTHING`, url, at)
	if err != nil {
		return &PersistenceError{Op: "mark seen", Err: err}
	}
	return nil
}

func (s *PostgresSeenStore) CountSeen(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM seen_listings`).Scan(&count)
	if err != nil {
		return 0, &PersistenceError{Op: "count seen", Err: err}
	}
	return count, nil
}

func (s *PostgresSeenStore) RecentSeen(ctx context.Context, limit int) ([]models.SeenListing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT url, first_seen_at FROM seen_listings
		ORDER BY first_seen_at DESC LIMIT $1`, limit)
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
