package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nuan-odoo/wrapperAI/internal/domain"
	"github.com/nuan-odoo/wrapperAI/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// _pragma parameters run on every new connection in the pool.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		message TEXT NOT NULL,
		response TEXT NOT NULL DEFAULT '',
		ticks INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_started ON exchanges(started_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveExchange records a finished exchange.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) SaveExchange(ctx context.Context, ex *domain.Exchange) error {
	return withRetry(ctx, "save exchange", 3, 50*time.Millisecond, func() error {
		return s.saveExchangeOnce(ctx, ex)
	})
}

func (s *SQLiteStore) saveExchangeOnce(ctx context.Context, ex *domain.Exchange) error {
	query := `
	INSERT INTO exchanges (id, target, message, response, ticks, error, started_at, duration_ns)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		response = excluded.response,
		ticks = excluded.ticks,
		error = excluded.error,
		duration_ns = excluded.duration_ns`

	var errText interface{}
	if ex.Error != "" {
		errText = ex.Error
	}

	_, err := s.db.ExecContext(ctx, query,
		ex.ID, ex.Target, ex.Message, ex.Response, ex.Ticks,
		errText, ex.StartedAt.UnixNano(), int64(ex.Duration),
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// ListExchanges returns the most recent exchanges, newest first.
func (s *SQLiteStore) ListExchanges(ctx context.Context, limit int) ([]*domain.Exchange, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, target, message, response, ticks, error, started_at, duration_ns
		FROM exchanges ORDER BY started_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close exchange rows", "error", closeErr)
		}
	}()

	exchanges := make([]*domain.Exchange, 0, limit)
	for rows.Next() {
		var ex domain.Exchange
		var errText sql.NullString
		var startedAt, duration int64

		if err := rows.Scan(
			&ex.ID, &ex.Target, &ex.Message, &ex.Response, &ex.Ticks,
			&errText, &startedAt, &duration,
		); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}

		ex.Error = errText.String
		ex.StartedAt = time.Unix(0, startedAt)
		ex.Duration = time.Duration(duration)
		exchanges = append(exchanges, &ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}

	return exchanges, nil
}

// DeleteExchangesBefore removes exchanges started before cutoff.
func (s *SQLiteStore) DeleteExchangesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := withRetry(ctx, "delete exchanges", 3, 100*time.Millisecond, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE started_at < ?`, cutoff.UnixNano())
		if err != nil {
			return fmt.Errorf("delete exchanges: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withRetry runs fn up to maxRetries times, backing off exponentially while
// SQLite reports a busy or locked database.
func withRetry(ctx context.Context, op string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // exponential backoff: 1x, 2x, 4x
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("%s after retries: %w", op, err)
}
