package models

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

const (
	AlertLowConversionKeywords    = "low_conversion_keywords"
	AlertAIOverviewImpact         = "ai_overview_impact"
	AlertRegionalUnderperformance = "regional_underperformance"
	AlertChurnSpike               = "churn_spike"
	AlertSocialChannelWaste       = "social_channel_waste"
	AlertQ3Dip                    = "q3_dip"
	AlertQuarterDip               = "quarter_dip"
)

// Alert is built fresh on every detection run and never stored.
type Alert struct {
	Type     string           `json:"type"`
	Severity Severity         `json:"severity"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Count    *int             `json:"count,omitempty"`
	Value    *float64         `json:"value,omitempty"`
	Details  []map[string]any `json:"details,omitempty"`
}
