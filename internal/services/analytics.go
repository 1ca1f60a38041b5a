package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"growth-dashboard/internal/alerts"
	"growth-dashboard/internal/config"
	"growth-dashboard/internal/models"
	"growth-dashboard/internal/store"
)

const (
	topRegionsLimit    = 5
	importHistoryLimit = 10
	defaultTrendPeriod = 12
)

var (
	ErrNoData        = errors.New("no monthly data available")
	ErrInvalidMetric = errors.New("invalid metric")
)

var trendMetrics = map[string]func(models.MonthlyMetric) float64{
	"mrr":         func(m models.MonthlyMetric) float64 { return m.MRRUSD },
	"signups":     func(m models.MonthlyMetric) float64 { return m.UniqueSignups },
	"traffic":     func(m models.MonthlyMetric) float64 { return m.WebsiteTraffic },
	"churn":       func(m models.MonthlyMetric) float64 { return m.ChurnRate * 100 },
	"conversions": func(m models.MonthlyMetric) float64 { return m.PaidConversions },
}

// TrendMetrics lists the metric names accepted by Trends.
func TrendMetrics() []string {
	names := make([]string, 0, len(trendMetrics))
	for name := range trendMetrics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Reader is the part of the store the dashboard reads from.
type Reader interface {
	alerts.MetricsReader
	Month(ctx context.Context, key string) (*models.MonthlyMetric, error)
	MonthSeries(ctx context.Context, n int) ([]models.MonthlyMetric, error)
	AvailableMonths(ctx context.Context) ([]string, error)
	RegionBreakdown(ctx context.Context) ([]models.RegionAggregate, error)
	TopRegionsByMRR(ctx context.Context, n int) ([]models.RegionAggregate, error)
	CountRegions(ctx context.Context) (int, error)
	LowPerformingChannels(ctx context.Context, maxAvgConversion float64) ([]models.ChannelAggregate, error)
	ImportHistory(ctx context.Context, limit int) ([]models.DataImport, error)

	KeywordCategories(ctx context.Context) ([]models.KeywordCategory, error)
	KeywordStats(ctx context.Context) (*models.KeywordStats, error)
	FindRegional(ctx context.Context, q store.RegionalQuery) ([]models.RegionalMetric, error)
	CountryBreakdown(ctx context.Context, region string) ([]models.CountryAggregate, error)
	CityBreakdown(ctx context.Context, country string) ([]models.CityAggregate, error)
	Regions(ctx context.Context) ([]string, error)
	Countries(ctx context.Context, region string) ([]string, error)
	Cities(ctx context.Context, country string) ([]string, error)
	FindChannels(ctx context.Context, q store.ChannelQuery) ([]models.ChannelMetric, error)
	Channels(ctx context.Context) ([]string, error)
	ChannelTrend(ctx context.Context, channel string) ([]models.ChannelTrendPoint, error)
}

var _ Reader = (*store.Store)(nil)

// Analytics answers the dashboard's read queries. It keeps no state of its
// own; every call reads the current snapshot from the store.
type Analytics struct {
	reader     Reader
	thresholds config.Thresholds
	logger     *slog.Logger
}

func NewAnalytics(reader Reader, thresholds config.Thresholds, logger *slog.Logger) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		reader:     reader,
		thresholds: thresholds,
		logger:     logger,
	}
}

type Comparison struct {
	Current  float64 `json:"current"`
	Growth   float64 `json:"growth"`
	Previous float64 `json:"previous"`
}

type ConversionRates struct {
	SignupToTrial float64 `json:"signupToTrial"`
	TrialToPaid   float64 `json:"trialToPaid"`
}

type RegionMRR struct {
	Region      string  `json:"region"`
	MRR         float64 `json:"mrr"`
	Conversions float64 `json:"conversions"`
}

type Totals struct {
	Keywords int `json:"keywords"`
	Regions  int `json:"regions"`
}

type Summary struct {
	CurrentMonth    string          `json:"currentMonth"`
	MRR             Comparison      `json:"mrr"`
	Signups         Comparison      `json:"signups"`
	ChurnRate       float64         `json:"churnRate"`
	ConversionRates ConversionRates `json:"conversionRates"`
	TopRegions      []RegionMRR     `json:"topRegions"`
	Totals          Totals          `json:"totals"`
}

// list turns a nil result into an empty slice so it encodes as [].
func list[T any](items []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func growth(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

func compare(current float64, previous *float64) Comparison {
	c := Comparison{Current: current}
	if previous != nil {
		c.Previous = *previous
		c.Growth = growth(current, *previous)
	}
	return c
}

// Summary reports the latest month against the one before it.
func (a *Analytics) Summary(ctx context.Context) (*Summary, error) {
	months, err := a.reader.RecentMonths(ctx, 2)
	if err != nil {
		return nil, err
	}
	if len(months) == 0 {
		return nil, ErrNoData
	}

	latest := months[0]
	var prevMRR, prevSignups *float64
	if len(months) > 1 {
		prevMRR, prevSignups = &months[1].MRRUSD, &months[1].UniqueSignups
	}

	regions, err := a.reader.TopRegionsByMRR(ctx, topRegionsLimit)
	if err != nil {
		return nil, err
	}
	keywordCount, err := a.reader.CountKeywords(ctx, store.KeywordQuery{})
	if err != nil {
		return nil, err
	}
	regionCount, err := a.reader.CountRegions(ctx)
	if err != nil {
		return nil, err
	}

	top := make([]RegionMRR, 0, len(regions))
	for _, r := range regions {
		top = append(top, RegionMRR{Region: r.Region, MRR: r.MRR, Conversions: r.PaidConversions})
	}

	return &Summary{
		CurrentMonth: latest.Month,
		MRR:          compare(latest.MRRUSD, prevMRR),
		Signups:      compare(latest.UniqueSignups, prevSignups),
		ChurnRate:    latest.ChurnRate,
		ConversionRates: ConversionRates{
			SignupToTrial: latest.SignupToTrialRate,
			TrialToPaid:   latest.TrialToPaidRate,
		},
		TopRegions: top,
		Totals:     Totals{Keywords: keywordCount, Regions: regionCount},
	}, nil
}

type TrendPoint struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// Trends returns one metric for the latest period months, oldest first.
func (a *Analytics) Trends(ctx context.Context, metric string, period int) ([]TrendPoint, error) {
	if metric == "" {
		metric = "mrr"
	}
	value, ok := trendMetrics[metric]
	if !ok {
		return nil, fmt.Errorf("%w %q, must be one of: %s", ErrInvalidMetric, metric, strings.Join(TrendMetrics(), ", "))
	}
	if period <= 0 {
		period = defaultTrendPeriod
	}

	months, err := a.reader.MonthSeries(ctx, period)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(months))
	for _, m := range months {
		points = append(points, TrendPoint{Month: m.Month, Value: value(m)})
	}
	return points, nil
}

type FunnelStage struct {
	Name                   string   `json:"name"`
	Value                  float64  `json:"value"`
	Percentage             float64  `json:"percentage"`
	Dropoff                *float64 `json:"dropoff"`
	ConversionFromPrevious *float64 `json:"conversionFromPrevious"`
}

type Funnel struct {
	Month             string        `json:"month"`
	Stages            []FunnelStage `json:"stages"`
	OverallConversion float64       `json:"overallConversion"`
}

func share(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// Funnel builds the Traffic, Signup, Trial, Paid funnel for month, or for the
// latest month when month is empty.
func (a *Analytics) Funnel(ctx context.Context, month string) (*Funnel, error) {
	if month == "" {
		latest, err := a.reader.LatestMonth(ctx)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			return nil, ErrNoData
		}
		month = latest
	}

	m, err := a.reader.Month(ctx, month)
	if err != nil {
		return nil, err
	}

	traffic := m.WebsiteTraffic
	f64 := func(v float64) *float64 { return &v }

	return &Funnel{
		Month: m.Month,
		Stages: []FunnelStage{
			{Name: "Traffic", Value: traffic, Percentage: 100},
			{
				Name:                   "Signup",
				Value:                  m.UniqueSignups,
				Percentage:             share(m.UniqueSignups, traffic),
				Dropoff:                f64(traffic - m.UniqueSignups),
				ConversionFromPrevious: f64(share(m.UniqueSignups, traffic)),
			},
			{
				Name:                   "Trial",
				Value:                  m.TrialsStarted,
				Percentage:             share(m.TrialsStarted, traffic),
				Dropoff:                f64(m.UniqueSignups - m.TrialsStarted),
				ConversionFromPrevious: f64(m.SignupToTrialRate),
			},
			{
				Name:                   "Paid",
				Value:                  m.PaidConversions,
				Percentage:             share(m.PaidConversions, traffic),
				Dropoff:                f64(m.TrialsStarted - m.PaidConversions),
				ConversionFromPrevious: f64(m.TrialToPaidRate),
			},
		},
		OverallConversion: share(m.PaidConversions, traffic),
	}, nil
}

func (a *Analytics) AvailableMonths(ctx context.Context) ([]string, error) {
	return list(a.reader.AvailableMonths(ctx))
}

// ProblemKeywords lists every keyword matched by the low conversion rule.
func (a *Analytics) ProblemKeywords(ctx context.Context) ([]models.KeywordMetric, error) {
	return list(a.reader.FindKeywords(ctx, alerts.LowConversionKeywordsQuery(a.thresholds)))
}

// AIOverviewImpact lists every keyword matched by the AI Overview rule.
func (a *Analytics) AIOverviewImpact(ctx context.Context) ([]models.KeywordMetric, error) {
	return list(a.reader.FindKeywords(ctx, alerts.AIOverviewImpactQuery(a.thresholds)))
}

func (a *Analytics) RegionBreakdown(ctx context.Context) ([]models.RegionAggregate, error) {
	return list(a.reader.RegionBreakdown(ctx))
}

type UnderperformingRegion struct {
	Region        string   `json:"region"`
	AvgConversion float64  `json:"avgConversion"`
	AvgCAC        float64  `json:"avgCAC"`
	Issues        []string `json:"issues"`
}

func (a *Analytics) UnderperformingRegions(ctx context.Context) ([]UnderperformingRegion, error) {
	regions, err := a.reader.UnderperformingRegions(ctx, a.thresholds.RegionMinConversion, a.thresholds.RegionMaxCAC)
	if err != nil {
		return nil, err
	}

	out := make([]UnderperformingRegion, 0, len(regions))
	for _, r := range regions {
		issues := []string{}
		if r.AvgConversion < a.thresholds.RegionMinConversion {
			issues = append(issues, "Low conversion")
		}
		if r.AvgCAC > a.thresholds.RegionMaxCAC {
			issues = append(issues, "High CAC")
		}
		out = append(out, UnderperformingRegion{
			Region:        r.Region,
			AvgConversion: r.AvgConversion,
			AvgCAC:        r.AvgCAC,
			Issues:        issues,
		})
	}
	return out, nil
}

func (a *Analytics) ChannelComparison(ctx context.Context) ([]models.ChannelAggregate, error) {
	return list(a.reader.ChannelTotals(ctx, nil))
}

// LowPerformingChannels considers every channel, not only the social ones.
func (a *Analytics) LowPerformingChannels(ctx context.Context) ([]models.ChannelAggregate, error) {
	return list(a.reader.LowPerformingChannels(ctx, a.thresholds.SocialMinConversion))
}

// KeywordFilter narrows the keyword listing. Nil pointers and an empty
// Category match everything.
type KeywordFilter struct {
	Category      string
	MinTraffic    *float64
	MaxConversion *float64
	AIOverview    *bool
}

// Keywords lists the matching keywords, highest 2025 traffic first.
func (a *Analytics) Keywords(ctx context.Context, f KeywordFilter) ([]models.KeywordMetric, error) {
	return list(a.reader.FindKeywords(ctx, store.KeywordQuery{
		Category:      f.Category,
		MinTraffic:    f.MinTraffic,
		MaxConversion: f.MaxConversion,
		AIOverview:    f.AIOverview,
		OrderBy:       store.OrderByTraffic,
		Descending:    true,
	}))
}

func (a *Analytics) KeywordCategories(ctx context.Context) ([]models.KeywordCategory, error) {
	return list(a.reader.KeywordCategories(ctx))
}

func (a *Analytics) KeywordStats(ctx context.Context) (*models.KeywordStats, error) {
	return a.reader.KeywordStats(ctx)
}

func (a *Analytics) RegionalData(ctx context.Context, q store.RegionalQuery) ([]models.RegionalMetric, error) {
	return list(a.reader.FindRegional(ctx, q))
}

func (a *Analytics) CountryBreakdown(ctx context.Context, region string) ([]models.CountryAggregate, error) {
	return list(a.reader.CountryBreakdown(ctx, region))
}

func (a *Analytics) CityBreakdown(ctx context.Context, country string) ([]models.CityAggregate, error) {
	return list(a.reader.CityBreakdown(ctx, country))
}

func (a *Analytics) Regions(ctx context.Context) ([]string, error) {
	return list(a.reader.Regions(ctx))
}

func (a *Analytics) Countries(ctx context.Context, region string) ([]string, error) {
	return list(a.reader.Countries(ctx, region))
}

func (a *Analytics) Cities(ctx context.Context, country string) ([]string, error) {
	return list(a.reader.Cities(ctx, country))
}

func (a *Analytics) ChannelData(ctx context.Context, q store.ChannelQuery) ([]models.ChannelMetric, error) {
	return list(a.reader.FindChannels(ctx, q))
}

func (a *Analytics) Channels(ctx context.Context) ([]string, error) {
	return list(a.reader.Channels(ctx))
}

// ChannelTrend returns the monthly series of one channel, oldest first.
func (a *Analytics) ChannelTrend(ctx context.Context, channel string) ([]models.ChannelTrendPoint, error) {
	return list(a.reader.ChannelTrend(ctx, channel))
}

func (a *Analytics) ImportHistory(ctx context.Context) ([]models.DataImport, error) {
	return list(a.reader.ImportHistory(ctx, importHistoryLimit))
}
