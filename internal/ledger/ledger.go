// Package ledger records per-tenant usage in SQLite. The ledger is an
// audit trail read by the monitor dashboard; it is never consulted on the
// serving path, and a write failure must not fail a request.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// timeFormat is the ISO 8601 format used for all timestamps in SQLite.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Entry is one recorded transform or upload.
type Entry struct {
	Tenant   string
	Key      string
	Source   string
	Format   string
	Bytes    int64
	CacheHit bool
	At       time.Time
}

// TenantUsage aggregates a tenant's recorded activity.
type TenantUsage struct {
	Tenant    string
	Requests  int64
	CacheHits int64
	Bytes     int64
}

// Ledger is a SQLite-backed usage log suitable for single-node
// deployments.
type Ledger struct {
	db *sql.DB
}

// Open creates a Ledger at the given path and initializes the schema.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger database: %w", err)
	}
	return l, nil
}

// initDB applies PRAGMAs and creates the usage table. Safe to call
// multiple times (idempotent via IF NOT EXISTS).
func (l *Ledger) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := l.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS usage_log (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant     TEXT NOT NULL,
			key        TEXT NOT NULL,
			source     TEXT NOT NULL DEFAULT '',
			format     TEXT NOT NULL,
			bytes      INTEGER NOT NULL,
			cache_hit  INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_usage_tenant ON usage_log(tenant);
		CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_log(created_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Record appends one usage entry. A zero At defaults to now.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	hit := 0
	if e.CacheHit {
		hit = 1
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage_log (tenant, key, source, format, bytes, cache_hit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Tenant, e.Key, e.Source, e.Format, e.Bytes, hit, at.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("recording usage entry: %w", err)
	}
	return nil
}

// TenantTotals aggregates usage per tenant, ordered by tenant name.
func (l *Ledger) TenantTotals(ctx context.Context) ([]TenantUsage, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT tenant, COUNT(*), COALESCE(SUM(cache_hit), 0), COALESCE(SUM(bytes), 0)
		 FROM usage_log GROUP BY tenant ORDER BY tenant`)
	if err != nil {
		return nil, fmt.Errorf("querying tenant totals: %w", err)
	}
	defer rows.Close()

	var totals []TenantUsage
	for rows.Next() {
		var u TenantUsage
		if err := rows.Scan(&u.Tenant, &u.Requests, &u.CacheHits, &u.Bytes); err != nil {
			return nil, fmt.Errorf("scanning tenant totals: %w", err)
		}
		totals = append(totals, u)
	}
	return totals, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
