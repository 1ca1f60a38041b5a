package alerts

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"growth-dashboard/internal/config"
	"growth-dashboard/internal/models"
	"growth-dashboard/internal/store"
)

// RuleFunc evaluates one rule against the current snapshot. A nil alert with
// a nil error means the rule found nothing.
type RuleFunc func(ctx context.Context, r MetricsReader, t config.Thresholds) (*models.Alert, error)

type Rule struct {
	Name string
	Eval RuleFunc
}

// Battery returns the default rules in report order.
func Battery() []Rule {
	return []Rule{
		{Name: models.AlertLowConversionKeywords, Eval: LowConversionKeywords},
		{Name: models.AlertAIOverviewImpact, Eval: AIOverviewImpact},
		{Name: models.AlertRegionalUnderperformance, Eval: RegionalUnderperformance},
		{Name: models.AlertChurnSpike, Eval: ChurnSpike},
		{Name: models.AlertSocialChannelWaste, Eval: SocialChannelWaste},
	}
}

// tolerance absorbs float rounding in averaged values, so that an average
// equal to a threshold on paper never crosses a strict bound.
const tolerance = 1e-9

func exceeds(v, limit float64) bool { return v-limit > tolerance }

func below(v, limit float64) bool { return limit-v > tolerance }

func ptr[T any](v T) *T { return &v }

func LowConversionKeywordsQuery(t config.Thresholds) store.KeywordQuery {
	return store.KeywordQuery{
		MinTraffic:    store.Ptr(t.LowConversionMinTraffic),
		MaxConversion: store.Ptr(t.LowConversionMaxRate),
		OrderBy:       store.OrderByTraffic,
		Descending:    true,
	}
}

func LowConversionKeywords(ctx context.Context, r MetricsReader, t config.Thresholds) (*models.Alert, error) {
	q := LowConversionKeywordsQuery(t)
	q.Limit = t.DetailLimit

	top, err := r.FindKeywords(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, nil
	}

	count, err := r.CountKeywords(ctx, q)
	if err != nil {
		return nil, err
	}

	details := make([]map[string]any, 0, len(top))
	for _, k := range top {
		details = append(details, map[string]any{
			"keyword":    k.Keyword,
			"traffic":    k.Traffic2025,
			"conversion": k.ConversionRate2025,
		})
	}

	return &models.Alert{
		Type:     models.AlertLowConversionKeywords,
		Severity: models.SeverityCritical,
		Title:    "High Traffic, Low Conversion Keywords",
		Message: fmt.Sprintf("%d keywords with %s+ visits but <%s%% conversion rate",
			count, humanize.Comma(int64(t.LowConversionMinTraffic)), humanize.Ftoa(t.LowConversionMaxRate)),
		Count:   ptr(count),
		Details: details,
	}, nil
}

func AIOverviewImpactQuery(t config.Thresholds) store.KeywordQuery {
	return store.KeywordQuery{
		AIOverview:       store.Ptr(true),
		MaxTrafficChange: store.Ptr(t.AIOverviewTrafficDrop),
		OrderBy:          store.OrderByTrafficChange,
	}
}

func AIOverviewImpact(ctx context.Context, r MetricsReader, t config.Thresholds) (*models.Alert, error) {
	q := AIOverviewImpactQuery(t)
	q.Limit = t.DetailLimit

	top, err := r.FindKeywords(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, nil
	}

	count, err := r.CountKeywords(ctx, q)
	if err != nil {
		return nil, err
	}

	details := make([]map[string]any, 0, len(top))
	for _, k := range top {
		details = append(details, map[string]any{
			"keyword":       k.Keyword,
			"trafficChange": k.TrafficChangePct,
		})
	}

	return &models.Alert{
		Type:     models.AlertAIOverviewImpact,
		Severity: models.SeverityMedium,
		Title:    "AI Overview Cannibalization",
		Message:  fmt.Sprintf("%d keywords losing traffic to Google's AI Overview", count),
		Count:    ptr(count),
		Details:  details,
	}, nil
}

func RegionalUnderperformance(ctx context.Context, r MetricsReader, t config.Thresholds) (*models.Alert, error) {
	regions, err := r.UnderperformingRegions(ctx, t.RegionMinConversion, t.RegionMaxCAC)
	if err != nil {
		return nil, err
	}

	details := make([]map[string]any, 0, len(regions))
	for _, reg := range regions {
		// The reader filters with plain SQL comparisons; re-check with tolerance.
		if !below(reg.AvgConversion, t.RegionMinConversion) && !exceeds(reg.AvgCAC, t.RegionMaxCAC) {
			continue
		}
		details = append(details, map[string]any{
			"region":        reg.Region,
			"avgConversion": reg.AvgConversion,
			"avgCAC":        reg.AvgCAC,
		})
	}
	if len(details) == 0 {
		return nil, nil
	}

	return &models.Alert{
		Type:     models.AlertRegionalUnderperformance,
		Severity: models.SeverityHigh,
		Title:    "Underperforming Regions",
		Message:  fmt.Sprintf("%d regions with poor conversion or high CAC", len(details)),
		Count:    ptr(len(details)),
		Details:  details,
	}, nil
}

func ChurnSpike(ctx context.Context, r MetricsReader, t config.Thresholds) (*models.Alert, error) {
	months, err := r.RecentMonths(ctx, t.ChurnWindowMonths)
	if err != nil {
		return nil, err
	}
	if len(months) == 0 || len(months) < t.ChurnMinSamples {
		return nil, nil
	}

	var sum float64
	for _, m := range months {
		sum += m.ChurnRate
	}
	avg := sum / float64(len(months))

	if !exceeds(avg, t.ChurnMaxRate) {
		return nil, nil
	}

	pct := avg * 100
	return &models.Alert{
		Type:     models.AlertChurnSpike,
		Severity: models.SeverityCritical,
		Title:    "High Churn Rate",
		Message: fmt.Sprintf("Churn rate at %.2f%% (above %s%% threshold)",
			pct, humanize.Ftoa(t.ChurnMaxRate*100)),
		Value: ptr(pct),
	}, nil
}

func SocialChannelWaste(ctx context.Context, r MetricsReader, t config.Thresholds) (*models.Alert, error) {
	channels, err := r.ChannelTotals(ctx, t.SocialChannels)
	if err != nil {
		return nil, err
	}

	var (
		details  []map[string]any
		sessions float64
	)
	for _, c := range channels {
		if !below(c.AvgConversion, t.SocialMinConversion) {
			continue
		}
		sessions += c.TotalSessions
		details = append(details, map[string]any{
			"channel":       c.Channel,
			"avgConversion": c.AvgConversion,
			"totalSessions": c.TotalSessions,
		})
	}
	if len(details) == 0 {
		return nil, nil
	}

	return &models.Alert{
		Type:     models.AlertSocialChannelWaste,
		Severity: models.SeverityHigh,
		Title:    "Social Channels Underperforming",
		Message: fmt.Sprintf("Social channels have <%s%% conversion rate with %s sessions",
			humanize.Ftoa(t.SocialMinConversion), humanize.Comma(int64(math.Round(sessions)))),
		Count:   ptr(len(details)),
		Details: details,
	}, nil
}

// averageTraffic returns the mean website traffic over the stored months of q
// and how many months were found.
func averageTraffic(ctx context.Context, r MetricsReader, q Quarter) (float64, int, error) {
	months, err := r.MonthsIn(ctx, q.Months())
	if err != nil {
		return 0, 0, err
	}
	if len(months) == 0 {
		return 0, 0, nil
	}

	var sum float64
	for _, m := range months {
		sum += m.WebsiteTraffic
	}
	return sum / float64(len(months)), len(months), nil
}

// quarterDecline compares average traffic of current against previous. ok is
// false when either quarter has no data or the previous average is zero.
func quarterDecline(ctx context.Context, r MetricsReader, current, previous Quarter) (decline float64, ok bool, err error) {
	curAvg, curN, err := averageTraffic(ctx, r, current)
	if err != nil {
		return 0, false, err
	}
	prevAvg, prevN, err := averageTraffic(ctx, r, previous)
	if err != nil {
		return 0, false, err
	}
	if curN == 0 || prevN == 0 || prevAvg == 0 {
		return 0, false, nil
	}
	return (curAvg - prevAvg) / prevAvg * 100, true, nil
}

func quarterDipAlert(alertType string, current, previous Quarter, decline float64) *models.Alert {
	return &models.Alert{
		Type:     alertType,
		Severity: models.SeverityMedium,
		Title:    fmt.Sprintf("%s Traffic Dip", current),
		Message: fmt.Sprintf("%s traffic down %.1f%% vs %s",
			current, math.Abs(decline), previous.shortLabel(current)),
		Value: ptr(decline),
	}
}

// QuarterDip builds a rule comparing two fixed quarters.
func QuarterDip(alertType string, current, previous Quarter) RuleFunc {
	return func(ctx context.Context, r MetricsReader, t config.Thresholds) (*models.Alert, error) {
		decline, ok, err := quarterDecline(ctx, r, current, previous)
		if err != nil || !ok {
			return nil, err
		}
		if !below(decline, t.QuarterDipThreshold) {
			return nil, nil
		}
		return quarterDipAlert(alertType, current, previous, decline), nil
	}
}

// RollingQuarterDip compares the quarter holding the latest stored month with
// the quarter before it.
func RollingQuarterDip(ctx context.Context, r MetricsReader, t config.Thresholds) (*models.Alert, error) {
	latest, err := r.LatestMonth(ctx)
	if err != nil {
		return nil, err
	}
	if latest == "" {
		return nil, nil
	}

	current, err := QuarterOfMonth(latest)
	if err != nil {
		return nil, err
	}
	return QuarterDip(models.AlertQuarterDip, current, current.Previous())(ctx, r, t)
}
