package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Migration struct {
	Version     int
	Description string
	Up          func(tx *sqlx.Tx) error
}

// migrations is append-only. New steps take the next Version number.
var migrations = []Migration{
	{
		Version:     1,
		Description: "metric collections and import history",
		Up: func(tx *sqlx.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS keyword_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    traffic_2024 REAL NOT NULL DEFAULT 0,
    traffic_2025 REAL NOT NULL DEFAULT 0,
    traffic_change_pct REAL NOT NULL DEFAULT 0,
    position_2024 REAL NOT NULL DEFAULT 0,
    position_2025 REAL NOT NULL DEFAULT 0,
    position_change REAL NOT NULL DEFAULT 0,
    signups_2024 REAL NOT NULL DEFAULT 0,
    signups_2025 REAL NOT NULL DEFAULT 0,
    conversion_rate_2024 REAL NOT NULL DEFAULT 0,
    conversion_rate_2025 REAL NOT NULL DEFAULT 0,
    ai_overview_triggered INTEGER NOT NULL DEFAULT 0,
    difficulty_score REAL NOT NULL DEFAULT 0,
    cpc_usd REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS regional_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    region TEXT NOT NULL,
    country TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    month TEXT NOT NULL,
    organic_traffic REAL NOT NULL DEFAULT 0,
    paid_traffic REAL NOT NULL DEFAULT 0,
    total_traffic REAL NOT NULL DEFAULT 0,
    trials_started REAL NOT NULL DEFAULT 0,
    paid_conversions REAL NOT NULL DEFAULT 0,
    trial_to_paid_rate REAL NOT NULL DEFAULT 0,
    mrr_usd REAL NOT NULL DEFAULT 0,
    cac_usd REAL NOT NULL DEFAULT 0,
    ltv_usd REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS monthly_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    month TEXT NOT NULL UNIQUE,
    website_traffic REAL NOT NULL DEFAULT 0,
    unique_signups REAL NOT NULL DEFAULT 0,
    trials_started REAL NOT NULL DEFAULT 0,
    paid_conversions REAL NOT NULL DEFAULT 0,
    mrr_usd REAL NOT NULL DEFAULT 0,
    churn_rate REAL NOT NULL DEFAULT 0,
    signup_to_trial_rate REAL NOT NULL DEFAULT 0,
    trial_to_paid_rate REAL NOT NULL DEFAULT 0,
    net_new_mrr REAL NOT NULL DEFAULT 0,
    expansion_mrr REAL NOT NULL DEFAULT 0,
    churned_mrr REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS channel_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    month TEXT NOT NULL,
    channel TEXT NOT NULL,
    sessions REAL NOT NULL DEFAULT 0,
    signups REAL NOT NULL DEFAULT 0,
    conversion_rate REAL NOT NULL DEFAULT 0,
    avg_session_duration_sec REAL NOT NULL DEFAULT 0,
    bounce_rate REAL NOT NULL DEFAULT 0,
    pages_per_session REAL NOT NULL DEFAULT 0,
    UNIQUE (month, channel)
);

CREATE TABLE IF NOT EXISTS data_imports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT NOT NULL,
    status TEXT NOT NULL,
    record_count INTEGER NOT NULL DEFAULT 0,
    error_msg TEXT NOT NULL DEFAULT '',
    imported_at INTEGER NOT NULL
);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "indexes for alert and dashboard queries",
		Up: func(tx *sqlx.Tx) error {
			_, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_keyword_traffic ON keyword_metrics(traffic_2025 DESC);
CREATE INDEX IF NOT EXISTS idx_keyword_ai_overview ON keyword_metrics(ai_overview_triggered, traffic_change_pct);
CREATE INDEX IF NOT EXISTS idx_regional_region ON regional_metrics(region);
CREATE INDEX IF NOT EXISTS idx_channel_channel ON channel_metrics(channel);
CREATE INDEX IF NOT EXISTS idx_imports_imported_at ON data_imports(imported_at DESC);
`)
			return err
		},
	},
}

func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	if err := s.db.Get(&version, "PRAGMA user_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate applies every migration above PRAGMA user_version in order.
func (s *Store) migrate() error {
	current, err := s.schemaVersion()
	if err != nil {
		return err
	}

	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		s.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// user_version cannot be set inside the transaction with modernc/sqlite.
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}

	return nil
}
