package alerts

import (
	"context"

	"growth-dashboard/internal/models"
	"growth-dashboard/internal/store"
)

// MetricsReader is the read-only query surface the rules run against.
// *store.Store implements it.
type MetricsReader interface {
	FindKeywords(ctx context.Context, q store.KeywordQuery) ([]models.KeywordMetric, error)
	CountKeywords(ctx context.Context, q store.KeywordQuery) (int, error)
	UnderperformingRegions(ctx context.Context, maxAvgConversion, minAvgCAC float64) ([]models.RegionAggregate, error)
	RecentMonths(ctx context.Context, n int) ([]models.MonthlyMetric, error)
	MonthsIn(ctx context.Context, months []string) ([]models.MonthlyMetric, error)
	LatestMonth(ctx context.Context) (string, error)
	ChannelTotals(ctx context.Context, channels []string) ([]models.ChannelAggregate, error)
}

var _ MetricsReader = (*store.Store)(nil)
