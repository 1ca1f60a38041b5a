package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds every tunable boundary used by the alert rules.
type Thresholds struct {
	LowConversionMinTraffic float64  `yaml:"low_conversion_min_traffic"`
	LowConversionMaxRate    float64  `yaml:"low_conversion_max_rate"`
	AIOverviewTrafficDrop   float64  `yaml:"ai_overview_traffic_drop"`
	RegionMinConversion     float64  `yaml:"region_min_conversion"`
	RegionMaxCAC            float64  `yaml:"region_max_cac"`
	ChurnWindowMonths       int      `yaml:"churn_window_months"`
	ChurnMinSamples         int      `yaml:"churn_min_samples"`
	ChurnMaxRate            float64  `yaml:"churn_max_rate"`
	SocialChannels          []string `yaml:"social_channels"`
	SocialMinConversion     float64  `yaml:"social_min_conversion"`
	QuarterDipThreshold     float64  `yaml:"quarter_dip_threshold"`
	DetailLimit             int      `yaml:"detail_limit"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		LowConversionMinTraffic: 2000,
		LowConversionMaxRate:    1.5,
		AIOverviewTrafficDrop:   -10,
		RegionMinConversion:     12,
		RegionMaxCAC:            150,
		ChurnWindowMonths:       3,
		ChurnMinSamples:         1,
		ChurnMaxRate:            0.05,
		SocialChannels:          []string{"Social (Organic)", "Social (Paid)"},
		SocialMinConversion:     2,
		QuarterDipThreshold:     -10,
		DetailLimit:             5,
	}
}

func (t Thresholds) Validate() error {
	if t.ChurnWindowMonths <= 0 {
		return errors.New("churn window must be positive")
	}
	if t.ChurnMinSamples <= 0 || t.ChurnMinSamples > t.ChurnWindowMonths {
		return fmt.Errorf("churn min samples must be between 1 and %d", t.ChurnWindowMonths)
	}
	if t.ChurnMaxRate < 0 || t.ChurnMaxRate > 1 {
		return errors.New("churn max rate is a fraction and must be within [0, 1]")
	}
	if t.DetailLimit <= 0 {
		return errors.New("detail limit must be positive")
	}
	if len(t.SocialChannels) == 0 {
		return errors.New("at least one social channel is required")
	}
	if t.LowConversionMinTraffic < 0 || t.LowConversionMaxRate < 0 {
		return errors.New("low conversion thresholds cannot be negative")
	}
	return nil
}

// LoadThresholdsFile overlays the keys present in a YAML file onto base.
func LoadThresholdsFile(path string, base Thresholds) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading thresholds file: %w", err)
	}
	return parseThresholds(data, base)
}

func parseThresholds(data []byte, base Thresholds) (Thresholds, error) {
	out := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parsing thresholds: %w", err)
	}
	return out, nil
}

func thresholdsFromEnv(t Thresholds) Thresholds {
	t.LowConversionMinTraffic = getEnvFloat("ALERT_LOW_CONVERSION_MIN_TRAFFIC", t.LowConversionMinTraffic)
	t.LowConversionMaxRate = getEnvFloat("ALERT_LOW_CONVERSION_MAX_RATE", t.LowConversionMaxRate)
	t.AIOverviewTrafficDrop = getEnvFloat("ALERT_AI_OVERVIEW_TRAFFIC_DROP", t.AIOverviewTrafficDrop)
	t.RegionMinConversion = getEnvFloat("ALERT_REGION_MIN_CONVERSION", t.RegionMinConversion)
	t.RegionMaxCAC = getEnvFloat("ALERT_REGION_MAX_CAC", t.RegionMaxCAC)
	t.ChurnWindowMonths = getEnvInt("ALERT_CHURN_WINDOW_MONTHS", t.ChurnWindowMonths)
	t.ChurnMinSamples = getEnvInt("ALERT_CHURN_MIN_SAMPLES", t.ChurnMinSamples)
	t.ChurnMaxRate = getEnvFloat("ALERT_CHURN_MAX_RATE", t.ChurnMaxRate)
	t.SocialChannels = getEnvStringSlice("ALERT_SOCIAL_CHANNELS", t.SocialChannels)
	t.SocialMinConversion = getEnvFloat("ALERT_SOCIAL_MIN_CONVERSION", t.SocialMinConversion)
	t.QuarterDipThreshold = getEnvFloat("ALERT_QUARTER_DIP_THRESHOLD", t.QuarterDipThreshold)
	t.DetailLimit = getEnvInt("ALERT_DETAIL_LIMIT", t.DetailLimit)
	return t
}
