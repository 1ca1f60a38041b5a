package store

import (
	"context"
	"fmt"
	"strings"

	"growth-dashboard/internal/models"
)

type KeywordOrder string

const (
	OrderByTraffic       KeywordOrder = "traffic_2025"
	OrderByTrafficChange KeywordOrder = "traffic_change_pct"
)

// KeywordQuery filters keyword_metrics. Nil pointers leave a predicate out.
type KeywordQuery struct {
	Category         string
	MinTraffic       *float64 // traffic_2025 >= MinTraffic
	MaxConversion    *float64 // conversion_rate_2025 <= MaxConversion
	AIOverview       *bool
	MaxTrafficChange *float64 // traffic_change_pct < MaxTrafficChange
	OrderBy          KeywordOrder
	Descending       bool
	Limit            int
}

func (q KeywordQuery) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if q.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, q.Category)
	}
	if q.MinTraffic != nil {
		clauses = append(clauses, "traffic_2025 >= ?")
		args = append(args, *q.MinTraffic)
	}
	if q.MaxConversion != nil {
		clauses = append(clauses, "conversion_rate_2025 <= ?")
		args = append(args, *q.MaxConversion)
	}
	if q.AIOverview != nil {
		clauses = append(clauses, "ai_overview_triggered = ?")
		args = append(args, *q.AIOverview)
	}
	if q.MaxTrafficChange != nil {
		clauses = append(clauses, "traffic_change_pct < ?")
		args = append(args, *q.MaxTrafficChange)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (q KeywordQuery) orderClause() (string, error) {
	column := q.OrderBy
	if column == "" {
		column = OrderByTraffic
	}
	switch column {
	case OrderByTraffic, OrderByTrafficChange:
	default:
		return "", fmt.Errorf("unsupported keyword ordering %q", column)
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}
	// keyword breaks ties so top-N selections are stable.
	return fmt.Sprintf(" ORDER BY %s %s, keyword ASC", column, dir), nil
}

func (s *Store) FindKeywords(ctx context.Context, q KeywordQuery) ([]models.KeywordMetric, error) {
	where, args := q.where()
	order, err := q.orderClause()
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM keyword_metrics" + where + order
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	var keywords []models.KeywordMetric
	if err := s.db.SelectContext(ctx, &keywords, query, args...); err != nil {
		return nil, fmt.Errorf("find keywords: %w", err)
	}
	return keywords, nil
}

// CountKeywords ignores the ordering and limit of q.
func (s *Store) CountKeywords(ctx context.Context, q KeywordQuery) (int, error) {
	where, args := q.where()

	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM keyword_metrics"+where, args...); err != nil {
		return 0, fmt.Errorf("count keywords: %w", err)
	}
	return count, nil
}

// KeywordCategories counts keywords per category, alphabetically.
func (s *Store) KeywordCategories(ctx context.Context) ([]models.KeywordCategory, error) {
	var categories []models.KeywordCategory
	err := s.db.SelectContext(ctx, &categories, `SELECT category, COUNT(*) AS count
FROM keyword_metrics
GROUP BY category
ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("keyword categories: %w", err)
	}
	return categories, nil
}

func (s *Store) KeywordStats(ctx context.Context) (*models.KeywordStats, error) {
	var stats models.KeywordStats
	err := s.db.GetContext(ctx, &stats, `SELECT
    COUNT(*) AS total,
    COALESCE(AVG(conversion_rate_2025), 0) AS avg_conversion,
    COALESCE(SUM(traffic_2025), 0) AS total_traffic,
    COALESCE(SUM(ai_overview_triggered), 0) AS ai_overview_count
FROM keyword_metrics`)
	if err != nil {
		return nil, fmt.Errorf("keyword stats: %w", err)
	}
	return &stats, nil
}

const insertKeyword = `INSERT INTO keyword_metrics (
    keyword, category, traffic_2024, traffic_2025, traffic_change_pct,
    position_2024, position_2025, position_change, signups_2024, signups_2025,
    conversion_rate_2024, conversion_rate_2025, ai_overview_triggered,
    difficulty_score, cpc_usd
) VALUES (
    :keyword, :category, :traffic_2024, :traffic_2025, :traffic_change_pct,
    :position_2024, :position_2025, :position_change, :signups_2024, :signups_2025,
    :conversion_rate_2024, :conversion_rate_2025, :ai_overview_triggered,
    :difficulty_score, :cpc_usd
)`

// ReplaceKeywords swaps the whole keyword collection for rows.
func (s *Store) ReplaceKeywords(ctx context.Context, rows []models.KeywordMetric) (int, error) {
	return replaceAll(ctx, s, "keyword_metrics", insertKeyword, rows)
}
