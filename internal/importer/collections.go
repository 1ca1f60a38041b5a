package importer

import "growth-dashboard/internal/models"

type collection[T any] struct {
	name     string
	file     string
	required []string
	parse    func(f *fields) T
}

var keywordsCSV = collection[models.KeywordMetric]{
	name:     "keywords",
	file:     "keywords.csv",
	required: []string{"keyword", "traffic_2025", "traffic_change_pct", "conversion_rate_2025", "ai_overview_triggered"},
	parse: func(f *fields) models.KeywordMetric {
		return models.KeywordMetric{
			Keyword:             f.required("keyword"),
			Category:            f.str("category"),
			Traffic2024:         f.nonNegative("traffic_2024"),
			Traffic2025:         f.nonNegative("traffic_2025"),
			TrafficChangePct:    f.num("traffic_change_pct"),
			Position2024:        f.num("position_2024"),
			Position2025:        f.num("position_2025"),
			PositionChange:      f.num("position_change"),
			Signups2024:         f.nonNegative("signups_2024"),
			Signups2025:         f.nonNegative("signups_2025"),
			ConversionRate2024:  f.nonNegative("conversion_rate_2024"),
			ConversionRate2025:  f.nonNegative("conversion_rate_2025"),
			AIOverviewTriggered: f.flag("ai_overview_triggered"),
			DifficultyScore:     f.num("difficulty_score"),
			CPCUSD:              f.nonNegative("cpc_usd"),
		}
	},
}

var regionalCSV = collection[models.RegionalMetric]{
	name:     "regional",
	file:     "regional.csv",
	required: []string{"region", "month", "trial_to_paid_rate", "cac_usd"},
	parse: func(f *fields) models.RegionalMetric {
		return models.RegionalMetric{
			Region:          f.required("region"),
			Country:         f.str("country"),
			City:            f.str("city"),
			Month:           f.month("month"),
			OrganicTraffic:  f.nonNegative("organic_traffic"),
			PaidTraffic:     f.nonNegative("paid_traffic"),
			TotalTraffic:    f.nonNegative("total_traffic"),
			TrialsStarted:   f.nonNegative("trials_started"),
			PaidConversions: f.nonNegative("paid_conversions"),
			TrialToPaidRate: f.nonNegative("trial_to_paid_rate"),
			MRRUSD:          f.num("mrr_usd"),
			CACUSD:          f.nonNegative("cac_usd"),
			LTVUSD:          f.num("ltv_usd"),
		}
	},
}

var monthlyCSV = collection[models.MonthlyMetric]{
	name:     "monthly",
	file:     "monthly.csv",
	required: []string{"month", "website_traffic", "churn_rate"},
	parse: func(f *fields) models.MonthlyMetric {
		return models.MonthlyMetric{
			Month:             f.month("month"),
			WebsiteTraffic:    f.nonNegative("website_traffic"),
			UniqueSignups:     f.nonNegative("unique_signups"),
			TrialsStarted:     f.nonNegative("trials_started"),
			PaidConversions:   f.nonNegative("paid_conversions"),
			MRRUSD:            f.num("mrr_usd"),
			ChurnRate:         f.fraction("churn_rate"),
			SignupToTrialRate: f.nonNegative("signup_to_trial_rate"),
			TrialToPaidRate:   f.nonNegative("trial_to_paid_rate"),
			NetNewMRR:         f.num("net_new_mrr"),
			ExpansionMRR:      f.num("expansion_mrr"),
			ChurnedMRR:        f.num("churned_mrr"),
		}
	},
}

var channelsCSV = collection[models.ChannelMetric]{
	name:     "channels",
	file:     "channels.csv",
	required: []string{"month", "channel", "sessions", "conversion_rate"},
	parse: func(f *fields) models.ChannelMetric {
		return models.ChannelMetric{
			Month:                 f.month("month"),
			Channel:               f.required("channel"),
			Sessions:              f.nonNegative("sessions"),
			Signups:               f.nonNegative("signups"),
			ConversionRate:        f.nonNegative("conversion_rate"),
			AvgSessionDurationSec: f.nonNegative("avg_session_duration_sec"),
			BounceRate:            f.nonNegative("bounce_rate"),
			PagesPerSession:       f.nonNegative("pages_per_session"),
		}
	},
}
