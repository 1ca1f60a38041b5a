package store

import (
	"context"
	"fmt"

	"growth-dashboard/internal/models"
)

const regionAggregateColumns = `region,
    COALESCE(SUM(total_traffic), 0) AS total_traffic,
    COALESCE(SUM(trials_started), 0) AS trials_started,
    COALESCE(SUM(paid_conversions), 0) AS paid_conversions,
    COALESCE(SUM(mrr_usd), 0) AS mrr,
    COALESCE(AVG(trial_to_paid_rate), 0) AS avg_conversion,
    COALESCE(AVG(cac_usd), 0) AS avg_cac,
    COALESCE(AVG(ltv_usd), 0) AS avg_ltv`

// UnderperformingRegions groups by region and keeps the regions whose
// average trial-to-paid rate is below maxAvgConversion or whose average CAC
// is above minAvgCAC.
func (s *Store) UnderperformingRegions(ctx context.Context, maxAvgConversion, minAvgCAC float64) ([]models.RegionAggregate, error) {
	query := `SELECT ` + regionAggregateColumns + `
FROM regional_metrics
GROUP BY region
HAVING AVG(trial_to_paid_rate) < ? OR AVG(cac_usd) > ?
ORDER BY region ASC`

	var regions []models.RegionAggregate
	if err := s.db.SelectContext(ctx, &regions, query, maxAvgConversion, minAvgCAC); err != nil {
		return nil, fmt.Errorf("underperforming regions: %w", err)
	}
	return regions, nil
}

func (s *Store) RegionBreakdown(ctx context.Context) ([]models.RegionAggregate, error) {
	query := `SELECT ` + regionAggregateColumns + `
FROM regional_metrics
GROUP BY region
ORDER BY region ASC`

	var regions []models.RegionAggregate
	if err := s.db.SelectContext(ctx, &regions, query); err != nil {
		return nil, fmt.Errorf("region breakdown: %w", err)
	}
	return regions, nil
}

// TopRegionsByMRR returns the n regions with the highest summed MRR.
func (s *Store) TopRegionsByMRR(ctx context.Context, n int) ([]models.RegionAggregate, error) {
	query := `SELECT ` + regionAggregateColumns + `
FROM regional_metrics
GROUP BY region
ORDER BY mrr DESC, region ASC
LIMIT ?`

	var regions []models.RegionAggregate
	if err := s.db.SelectContext(ctx, &regions, query, n); err != nil {
		return nil, fmt.Errorf("top regions: %w", err)
	}
	return regions, nil
}

func (s *Store) CountRegions(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(DISTINCT region) FROM regional_metrics"); err != nil {
		return 0, fmt.Errorf("count regions: %w", err)
	}
	return count, nil
}

// RegionalQuery filters regional_metrics rows by exact match.
type RegionalQuery struct {
	Region  string
	Country string
	City    string
	Month   string
}

// FindRegional returns matching rows, newest month first and highest MRR
// first within a month.
func (s *Store) FindRegional(ctx context.Context, q RegionalQuery) ([]models.RegionalMetric, error) {
	var c conditions
	c.eq("region", q.Region)
	c.eq("country", q.Country)
	c.eq("city", q.City)
	c.eq("month", q.Month)
	where, args := c.where()

	var rows []models.RegionalMetric
	query := "SELECT * FROM regional_metrics" + where + " ORDER BY month DESC, mrr_usd DESC, id ASC"
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find regional: %w", err)
	}
	return rows, nil
}

func (s *Store) CountryBreakdown(ctx context.Context, region string) ([]models.CountryAggregate, error) {
	query := `SELECT country,
    COALESCE(SUM(total_traffic), 0) AS total_traffic,
    COALESCE(SUM(paid_conversions), 0) AS paid_conversions,
    COALESCE(SUM(mrr_usd), 0) AS mrr,
    COALESCE(AVG(trial_to_paid_rate), 0) AS avg_conversion
FROM regional_metrics
WHERE region = ?
GROUP BY country
ORDER BY country ASC`

	var countries []models.CountryAggregate
	if err := s.db.SelectContext(ctx, &countries, query, region); err != nil {
		return nil, fmt.Errorf("country breakdown: %w", err)
	}
	return countries, nil
}

func (s *Store) CityBreakdown(ctx context.Context, country string) ([]models.CityAggregate, error) {
	query := `SELECT city,
    COALESCE(SUM(total_traffic), 0) AS total_traffic,
    COALESCE(SUM(paid_conversions), 0) AS paid_conversions,
    COALESCE(SUM(mrr_usd), 0) AS mrr,
    COALESCE(AVG(trial_to_paid_rate), 0) AS avg_conversion,
    COALESCE(AVG(cac_usd), 0) AS avg_cac
FROM regional_metrics
WHERE country = ?
GROUP BY city
ORDER BY city ASC`

	var cities []models.CityAggregate
	if err := s.db.SelectContext(ctx, &cities, query, country); err != nil {
		return nil, fmt.Errorf("city breakdown: %w", err)
	}
	return cities, nil
}

// distinct lists the values of column, optionally narrowed by one equality
// filter, in ascending order.
func (s *Store) distinct(ctx context.Context, table, column string, filter conditions) ([]string, error) {
	where, args := filter.where()
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s%s ORDER BY %s ASC", column, table, where, column)

	var values []string
	if err := s.db.SelectContext(ctx, &values, query, args...); err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	return values, nil
}

func (s *Store) Regions(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "regional_metrics", "region", conditions{})
}

// Countries lists the countries of region, or every country when region is
// empty.
func (s *Store) Countries(ctx context.Context, region string) ([]string, error) {
	var c conditions
	c.eq("region", region)
	return s.distinct(ctx, "regional_metrics", "country", c)
}

// Cities lists the cities of country, or every city when country is empty.
func (s *Store) Cities(ctx context.Context, country string) ([]string, error) {
	var c conditions
	c.eq("country", country)
	return s.distinct(ctx, "regional_metrics", "city", c)
}

const insertRegional = `INSERT INTO regional_metrics (
    region, country, city, month, organic_traffic, paid_traffic, total_traffic,
    trials_started, paid_conversions, trial_to_paid_rate, mrr_usd, cac_usd, ltv_usd
) VALUES (
    :region, :country, :city, :month, :organic_traffic, :paid_traffic, :total_traffic,
    :trials_started, :paid_conversions, :trial_to_paid_rate, :mrr_usd, :cac_usd, :ltv_usd
)`

func (s *Store) ReplaceRegional(ctx context.Context, rows []models.RegionalMetric) (int, error) {
	return replaceAll(ctx, s, "regional_metrics", insertRegional, rows)
}
