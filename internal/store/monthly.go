package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"growth-dashboard/internal/models"
)

// RecentMonths returns up to n months, newest first.
func (s *Store) RecentMonths(ctx context.Context, n int) ([]models.MonthlyMetric, error) {
	var months []models.MonthlyMetric
	err := s.db.SelectContext(ctx, &months,
		"SELECT * FROM monthly_metrics ORDER BY month DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("recent months: %w", err)
	}
	return months, nil
}

// MonthsIn returns the stored rows for the given YYYY-MM keys, oldest first.
// Keys with no row are skipped.
func (s *Store) MonthsIn(ctx context.Context, keys []string) ([]models.MonthlyMetric, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT * FROM monthly_metrics WHERE month IN (?) ORDER BY month ASC", keys)
	if err != nil {
		return nil, fmt.Errorf("expanding months: %w", err)
	}

	var months []models.MonthlyMetric
	if err := s.db.SelectContext(ctx, &months, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("months in: %w", err)
	}
	return months, nil
}

// LatestMonth returns the newest month key, or "" when the table is empty.
func (s *Store) LatestMonth(ctx context.Context) (string, error) {
	var month sql.NullString
	if err := s.db.GetContext(ctx, &month, "SELECT MAX(month) FROM monthly_metrics"); err != nil {
		return "", fmt.Errorf("latest month: %w", err)
	}
	return month.String, nil
}

func (s *Store) Month(ctx context.Context, key string) (*models.MonthlyMetric, error) {
	var m models.MonthlyMetric
	err := s.db.GetContext(ctx, &m, "SELECT * FROM monthly_metrics WHERE month = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("month %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("month %s: %w", key, err)
	}
	return &m, nil
}

// MonthSeries returns the latest n months in chronological order.
func (s *Store) MonthSeries(ctx context.Context, n int) ([]models.MonthlyMetric, error) {
	var months []models.MonthlyMetric
	err := s.db.SelectContext(ctx, &months, `SELECT * FROM (
    SELECT * FROM monthly_metrics ORDER BY month DESC LIMIT ?
) ORDER BY month ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("month series: %w", err)
	}
	return months, nil
}

// AvailableMonths lists every month key, newest first.
func (s *Store) AvailableMonths(ctx context.Context) ([]string, error) {
	var months []string
	if err := s.db.SelectContext(ctx, &months, "SELECT month FROM monthly_metrics ORDER BY month DESC"); err != nil {
		return nil, fmt.Errorf("available months: %w", err)
	}
	return months, nil
}

const insertMonthly = `INSERT INTO monthly_metrics (
    month, website_traffic, unique_signups, trials_started, paid_conversions,
    mrr_usd, churn_rate, signup_to_trial_rate, trial_to_paid_rate,
    net_new_mrr, expansion_mrr, churned_mrr
) VALUES (
    :month, :website_traffic, :unique_signups, :trials_started, :paid_conversions,
    :mrr_usd, :churn_rate, :signup_to_trial_rate, :trial_to_paid_rate,
    :net_new_mrr, :expansion_mrr, :churned_mrr
)`

// ReplaceMonthly fails without writing anything if two rows share a month.
func (s *Store) ReplaceMonthly(ctx context.Context, rows []models.MonthlyMetric) (int, error) {
	return replaceAll(ctx, s, "monthly_metrics", insertMonthly, rows)
}
