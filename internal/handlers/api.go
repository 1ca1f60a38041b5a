package handlers

import (
	stderrors "errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"growth-dashboard/internal/alerts"
	"growth-dashboard/internal/errors"
	"growth-dashboard/internal/importer"
	"growth-dashboard/internal/models"
	"growth-dashboard/internal/observability"
	"growth-dashboard/internal/services"
	"growth-dashboard/internal/store"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	analytics *services.Analytics
	detector  *alerts.Detector
	importer  *importer.Importer
	importDir string
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, detector *alerts.Detector, im *importer.Importer, importDir string, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		detector:  detector,
		importer:  im,
		importDir: importDir,
		logger:    logger,
	}
}

// AlertsResponse is the body of GET /api/alerts.
type AlertsResponse struct {
	Success     bool                 `json:"success"`
	Alerts      []models.Alert       `json:"alerts"`
	FailedRules []alerts.RuleFailure `json:"failedRules,omitempty"`
}

// AlertResponse is the body of the single alert endpoints. Alert is null
// when the rule did not fire.
type AlertResponse struct {
	Success bool          `json:"success"`
	Alert   *models.Alert `json:"alert"`
}

func (h *APIHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case stderrors.Is(err, services.ErrNoData), stderrors.Is(err, store.ErrNotFound):
		err = errors.NotFoundWrap(err, err.Error())
	case stderrors.Is(err, services.ErrInvalidMetric):
		err = errors.BadRequestWrap(err, err.Error())
	case stderrors.Is(err, importer.ErrImportRunning):
		err = errors.ConflictWrap(err, err.Error())
	}
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// writeJSON sends v with status 200, or a 500 envelope if v cannot be encoded.
func (h *APIHandlers) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	if err := errors.WriteJSON(w, http.StatusOK, v); stderrors.Is(err, errors.ErrEncode) {
		h.writeError(w, r, errors.InternalWrap(err, "failed to encode response"))
	}
}

func (h *APIHandlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	report, err := h.detector.DetectAnomalies(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	alertList := report.Alerts
	if alertList == nil {
		alertList = []models.Alert{}
	}

	h.writeJSON(w, r, AlertsResponse{
		Success:     true,
		Alerts:      alertList,
		FailedRules: report.Failures,
	})
}

func (h *APIHandlers) HandleQ3Dip(w http.ResponseWriter, r *http.Request) {
	alert, err := h.detector.DetectQ3Dip(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, AlertResponse{Success: true, Alert: alert})
}

func (h *APIHandlers) HandleQuarterDip(w http.ResponseWriter, r *http.Request) {
	alert, err := h.detector.DetectQuarterDip(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, r, AlertResponse{Success: true, Alert: alert})
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccess(w, summary)
}

func (h *APIHandlers) HandleTrends(w http.ResponseWriter, r *http.Request) {
	period := 0
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p <= 0 {
			h.writeError(w, r, errors.BadRequest("period must be a positive integer"))
			return
		}
		period = p
	}

	trends, err := h.analytics.Trends(r.Context(), r.URL.Query().Get("metric"), period)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccess(w, trends)
}

// monthParam reads an optional YYYY-MM query parameter.
func monthParam(r *http.Request) (string, error) {
	month := r.URL.Query().Get("month")
	if month == "" {
		return "", nil
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return "", errors.BadRequest("month must be formatted as YYYY-MM")
	}
	return month, nil
}

func floatParam(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, errors.BadRequest(name + " must be a number")
	}
	return &v, nil
}

func boolParam(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.BadRequest(name + " must be true or false")
	}
	return &v, nil
}

func requiredParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", errors.BadRequest(name + " parameter is required")
	}
	return v, nil
}

func (h *APIHandlers) HandleFunnel(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	funnel, err := h.analytics.Funnel(r.Context(), month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccess(w, funnel)
}

func (h *APIHandlers) HandleMonths(w http.ResponseWriter, r *http.Request) {
	months, err := h.analytics.AvailableMonths(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccess(w, months)
}

func (h *APIHandlers) HandleProblemKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.analytics.ProblemKeywords(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, keywords, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleAIOverviewImpact(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.analytics.AIOverviewImpact(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, keywords, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleRegionBreakdown(w http.ResponseWriter, r *http.Request) {
	regions, err := h.analytics.RegionBreakdown(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, regions, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleUnderperformingRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.analytics.UnderperformingRegions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, regions, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleChannelComparison(w http.ResponseWriter, r *http.Request) {
	channels, err := h.analytics.ChannelComparison(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, channels, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleLowPerformingChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.analytics.LowPerformingChannels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, channels, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleKeywords(w http.ResponseWriter, r *http.Request) {
	filter := services.KeywordFilter{Category: r.URL.Query().Get("category")}

	var err error
	if filter.MinTraffic, err = floatParam(r, "minTraffic"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.MaxConversion, err = floatParam(r, "maxConversion"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.AIOverview, err = boolParam(r, "aiOverview"); err != nil {
		h.writeError(w, r, err)
		return
	}

	keywords, err := h.analytics.Keywords(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, keywords, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleKeywordCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.analytics.KeywordCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, categories, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleKeywordStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.KeywordStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, stats, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleRegionalData(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()

	rows, err := h.analytics.RegionalData(r.Context(), store.RegionalQuery{
		Region:  q.Get("region"),
		Country: q.Get("country"),
		City:    q.Get("city"),
		Month:   month,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, rows, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleCountryBreakdown(w http.ResponseWriter, r *http.Request) {
	region, err := requiredParam(r, "region")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	countries, err := h.analytics.CountryBreakdown(r.Context(), region)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, countries, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleCityBreakdown(w http.ResponseWriter, r *http.Request) {
	country, err := requiredParam(r, "country")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cities, err := h.analytics.CityBreakdown(r.Context(), country)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, cities, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.analytics.Regions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, regions, map[string]string{"Cache-Control": cacheMaxAge})
}

// HandleCountries lists countries, narrowed to one region when ?region= is set.
func (h *APIHandlers) HandleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.analytics.Countries(r.Context(), r.URL.Query().Get("region"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, countries, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.analytics.Cities(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, cities, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleChannelData(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rows, err := h.analytics.ChannelData(r.Context(), store.ChannelQuery{
		Channel: r.URL.Query().Get("channel"),
		Month:   month,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, rows, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.analytics.Channels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, channels, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleChannelTrend(w http.ResponseWriter, r *http.Request) {
	channel, err := requiredParam(r, "channel")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	trend, err := h.analytics.ChannelTrend(r.Context(), channel)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, trend, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleImportHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.analytics.ImportHistory(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccess(w, history)
}

// HandleImport re-imports the CSV exports from the configured directory.
// A second request while an import is running gets 409.
func (h *APIHandlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	result, err := h.importer.ImportDir(r.Context(), h.importDir)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	errors.WriteSuccess(w, result)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}
