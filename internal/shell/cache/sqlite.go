package cache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artpar/code-explorer/internal/core/costs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteCache
// =============================================================================

// SQLiteCache stores periods as JSON rows with an expiry time.
type SQLiteCache struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteCache opens (creating if needed) the cache database and runs migrations.
func NewSQLiteCache(dsn string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sqlx.Open("sqlite3", withBusyTimeout(dsn))
	if err != nil {
		return nil, NewCacheError("NewSQLiteCache", "", err.Error(), ErrConnectionFailed)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewCacheError("NewSQLiteCache", "", err.Error(), ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewCacheError("NewSQLiteCache", "", err.Error(), ErrMigrationFailed)
	}

	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	return &SQLiteCache{db: db, ttl: ttl, now: time.Now}, nil
}

// withBusyTimeout appends a busy timeout to dsn unless it already sets one.
func withBusyTimeout(dsn string) string {
	// go-sqlite3 accepts both _busy_timeout and _timeout.
	if strings.Contains(dsn, "_timeout=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// cacheRow represents a cost_cache row.
type cacheRow struct {
	Key       string `db:"cache_key"`
	Periods   string `db:"periods"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
}

// Get returns the unexpired periods stored under key.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]costs.Period, bool, error) {
	var row cacheRow
	err := c.db.GetContext(ctx, &row,
		`SELECT cache_key, periods, created_at, expires_at FROM cost_cache WHERE cache_key = ? AND expires_at > ?`,
		key, c.now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, NewCacheError("Get", key, err.Error(), err)
	}

	var periods []costs.Period
	if err := json.Unmarshal([]byte(row.Periods), &periods); err != nil {
		return nil, false, NewCacheError("Get", key, "failed to decode periods", ErrInvalidData)
	}
	return periods, true, nil
}

// Put stores periods under key, replacing any previous entry, and drops
// expired entries.
func (c *SQLiteCache) Put(ctx context.Context, key string, periods []costs.Period) error {
	data, err := json.Marshal(periods)
	if err != nil {
		return NewCacheError("Put", key, "failed to encode periods", ErrInvalidData)
	}

	now := c.now()
	row := cacheRow{
		Key:       key,
		Periods:   string(data),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(c.ttl).Unix(),
	}

	_, err = c.db.NamedExecContext(ctx, `
		INSERT INTO cost_cache (cache_key, periods, created_at, expires_at)
		VALUES (:cache_key, :periods, :created_at, :expires_at)
		ON CONFLICT (cache_key) DO UPDATE SET
			periods = excluded.periods,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`, row)
	if err != nil {
		return NewCacheError("Put", key, err.Error(), err)
	}

	if _, err := c.PurgeExpired(ctx); err != nil {
		return NewCacheError("Put", key, "failed to purge expired entries", err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cost_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, NewCacheError("PurgeExpired", "", err.Error(), err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries, expired or not.
func (c *SQLiteCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM cost_cache`); err != nil {
		return 0, NewCacheError("Len", "", err.Error(), err)
	}
	return n, nil
}
