package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"growth-dashboard/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store is the SQLite-backed metric store. It is safe for concurrent use.
type Store struct {
	db     *sqlx.DB
	path   string
	logger *slog.Logger
}

// Open creates or opens the database at path and brings the schema up to date.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// replaceAll deletes every row of table and inserts rows with the named
// insert statement, all inside one transaction.
func replaceAll[T any](ctx context.Context, s *Store, table, insert string, rows []T) (int, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return replaceTable(ctx, tx, table, insert, rows)
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func replaceTable[T any](ctx context.Context, tx *sqlx.Tx, table, insert string, rows []T) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clearing %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareNamedContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]); err != nil {
			return fmt.Errorf("inserting %s row %d: %w", table, i+1, err)
		}
	}
	return nil
}

// Snapshot is one complete set of the four metric collections.
type Snapshot struct {
	Keywords []models.KeywordMetric
	Regional []models.RegionalMetric
	Monthly  []models.MonthlyMetric
	Channels []models.ChannelMetric
}

// ReplaceSnapshot swaps all four collections in a single transaction.
// Either every table holds the new rows afterwards or none of them changed.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap Snapshot) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := replaceTable(ctx, tx, "keyword_metrics", insertKeyword, snap.Keywords); err != nil {
			return err
		}
		if err := replaceTable(ctx, tx, "regional_metrics", insertRegional, snap.Regional); err != nil {
			return err
		}
		if err := replaceTable(ctx, tx, "monthly_metrics", insertMonthly, snap.Monthly); err != nil {
			return err
		}
		return replaceTable(ctx, tx, "channel_metrics", insertChannel, snap.Channels)
	})
}

// conditions collects equality predicates for the optional string filters of
// the row queries. Empty values leave a predicate out.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) eq(column, value string) {
	if value == "" {
		return
	}
	c.clauses = append(c.clauses, column+" = ?")
	c.args = append(c.args, value)
}

func (c conditions) where() (string, []any) {
	if len(c.clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(c.clauses, " AND "), c.args
}

func Ptr[T any](v T) *T {
	return &v
}
