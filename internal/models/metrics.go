package models

import "time"

type KeywordMetric struct {
	ID                  int64   `db:"id" json:"id"`
	Keyword             string  `db:"keyword" json:"keyword"`
	Category            string  `db:"category" json:"category"`
	Traffic2024         float64 `db:"traffic_2024" json:"traffic2024"`
	Traffic2025         float64 `db:"traffic_2025" json:"traffic2025"`
	TrafficChangePct    float64 `db:"traffic_change_pct" json:"trafficChangePct"`
	Position2024        float64 `db:"position_2024" json:"position2024"`
	Position2025        float64 `db:"position_2025" json:"position2025"`
	PositionChange      float64 `db:"position_change" json:"positionChange"`
	Signups2024         float64 `db:"signups_2024" json:"signups2024"`
	Signups2025         float64 `db:"signups_2025" json:"signups2025"`
	ConversionRate2024  float64 `db:"conversion_rate_2024" json:"conversionRate2024"`
	ConversionRate2025  float64 `db:"conversion_rate_2025" json:"conversionRate2025"`
	AIOverviewTriggered bool    `db:"ai_overview_triggered" json:"aiOverviewTriggered"`
	DifficultyScore     float64 `db:"difficulty_score" json:"difficultyScore"`
	CPCUSD              float64 `db:"cpc_usd" json:"cpcUsd"`
}

type RegionalMetric struct {
	ID              int64   `db:"id" json:"id"`
	Region          string  `db:"region" json:"region"`
	Country         string  `db:"country" json:"country"`
	City            string  `db:"city" json:"city"`
	Month           string  `db:"month" json:"month"`
	OrganicTraffic  float64 `db:"organic_traffic" json:"organicTraffic"`
	PaidTraffic     float64 `db:"paid_traffic" json:"paidTraffic"`
	TotalTraffic    float64 `db:"total_traffic" json:"totalTraffic"`
	TrialsStarted   float64 `db:"trials_started" json:"trialsStarted"`
	PaidConversions float64 `db:"paid_conversions" json:"paidConversions"`
	TrialToPaidRate float64 `db:"trial_to_paid_rate" json:"trialToPaidRate"`
	MRRUSD          float64 `db:"mrr_usd" json:"mrrUsd"`
	CACUSD          float64 `db:"cac_usd" json:"cacUsd"`
	LTVUSD          float64 `db:"ltv_usd" json:"ltvUsd"`
}

// MonthlyMetric is unique per Month (YYYY-MM). ChurnRate is a fraction, the
// other rates are percentages.
type MonthlyMetric struct {
	ID                int64   `db:"id" json:"id"`
	Month             string  `db:"month" json:"month"`
	WebsiteTraffic    float64 `db:"website_traffic" json:"websiteTraffic"`
	UniqueSignups     float64 `db:"unique_signups" json:"uniqueSignups"`
	TrialsStarted     float64 `db:"trials_started" json:"trialsStarted"`
	PaidConversions   float64 `db:"paid_conversions" json:"paidConversions"`
	MRRUSD            float64 `db:"mrr_usd" json:"mrrUsd"`
	ChurnRate         float64 `db:"churn_rate" json:"churnRate"`
	SignupToTrialRate float64 `db:"signup_to_trial_rate" json:"signupToTrialRate"`
	TrialToPaidRate   float64 `db:"trial_to_paid_rate" json:"trialToPaidRate"`
	NetNewMRR         float64 `db:"net_new_mrr" json:"netNewMrr"`
	ExpansionMRR      float64 `db:"expansion_mrr" json:"expansionMrr"`
	ChurnedMRR        float64 `db:"churned_mrr" json:"churnedMrr"`
}

// ChannelMetric is unique per (Month, Channel).
type ChannelMetric struct {
	ID                    int64   `db:"id" json:"id"`
	Month                 string  `db:"month" json:"month"`
	Channel               string  `db:"channel" json:"channel"`
	Sessions              float64 `db:"sessions" json:"sessions"`
	Signups               float64 `db:"signups" json:"signups"`
	ConversionRate        float64 `db:"conversion_rate" json:"conversionRate"`
	AvgSessionDurationSec float64 `db:"avg_session_duration_sec" json:"avgSessionDurationSec"`
	BounceRate            float64 `db:"bounce_rate" json:"bounceRate"`
	PagesPerSession       float64 `db:"pages_per_session" json:"pagesPerSession"`
}

// RegionAggregate is one row of a per-region GROUP BY over regional_metrics.
type RegionAggregate struct {
	Region          string  `db:"region" json:"region"`
	TotalTraffic    float64 `db:"total_traffic" json:"totalTraffic"`
	TrialsStarted   float64 `db:"trials_started" json:"trialsStarted"`
	PaidConversions float64 `db:"paid_conversions" json:"paidConversions"`
	MRR             float64 `db:"mrr" json:"mrr"`
	AvgConversion   float64 `db:"avg_conversion" json:"avgConversion"`
	AvgCAC          float64 `db:"avg_cac" json:"avgCAC"`
	AvgLTV          float64 `db:"avg_ltv" json:"avgLTV"`
}

// ChannelAggregate is one row of a per-channel GROUP BY over channel_metrics.
type ChannelAggregate struct {
	Channel            string  `db:"channel" json:"channel"`
	TotalSessions      float64 `db:"total_sessions" json:"totalSessions"`
	TotalSignups       float64 `db:"total_signups" json:"totalSignups"`
	AvgConversion      float64 `db:"avg_conversion" json:"avgConversion"`
	AvgBounceRate      float64 `db:"avg_bounce_rate" json:"avgBounceRate"`
	AvgSessionDuration float64 `db:"avg_session_duration" json:"avgSessionDuration"`
}

type KeywordCategory struct {
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}

type KeywordStats struct {
	Total           int     `db:"total" json:"total"`
	AvgConversion   float64 `db:"avg_conversion" json:"avgConversion"`
	TotalTraffic    float64 `db:"total_traffic" json:"totalTraffic"`
	AIOverviewCount int     `db:"ai_overview_count" json:"aiOverviewCount"`
}

// CountryAggregate is one row of a per-country GROUP BY within a region.
type CountryAggregate struct {
	Country         string  `db:"country" json:"country"`
	TotalTraffic    float64 `db:"total_traffic" json:"totalTraffic"`
	PaidConversions float64 `db:"paid_conversions" json:"paidConversions"`
	MRR             float64 `db:"mrr" json:"mrr"`
	AvgConversion   float64 `db:"avg_conversion" json:"avgConversion"`
}

// CityAggregate is one row of a per-city GROUP BY within a country.
type CityAggregate struct {
	City            string  `db:"city" json:"city"`
	TotalTraffic    float64 `db:"total_traffic" json:"totalTraffic"`
	PaidConversions float64 `db:"paid_conversions" json:"paidConversions"`
	MRR             float64 `db:"mrr" json:"mrr"`
	AvgConversion   float64 `db:"avg_conversion" json:"avgConversion"`
	AvgCAC          float64 `db:"avg_cac" json:"avgCAC"`
}

// ChannelTrendPoint is one month of a single channel.
type ChannelTrendPoint struct {
	Month          string  `db:"month" json:"month"`
	Sessions       float64 `db:"sessions" json:"sessions"`
	Signups        float64 `db:"signups" json:"signups"`
	ConversionRate float64 `db:"conversion_rate" json:"conversionRate"`
}

const (
	ImportProcessing = "processing"
	ImportSuccess    = "success"
	ImportFailed     = "failed"
)

type DataImport struct {
	ID          int64     `db:"id" json:"id"`
	Filename    string    `db:"filename" json:"filename"`
	Status      string    `db:"status" json:"status"`
	RecordCount int       `db:"record_count" json:"recordCount"`
	ErrorMsg    string    `db:"error_msg" json:"errorMsg,omitempty"`
	ImportedAt  time.Time `db:"imported_at" json:"importedAt"`
}
