package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"growth-dashboard/internal/alerts"
	"growth-dashboard/internal/models"
	"growth-dashboard/internal/observability"
	"growth-dashboard/internal/services"
	"growth-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	analytics *services.Analytics
	detector  *alerts.Detector
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, detector *alerts.Detector, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		detector:  detector,
		logger:    logger,
	}
}

func (h *SSEHandlers) renderAlertsPanel(ctx context.Context, alertList []models.Alert, failedRules []string) (string, error) {
	var buf strings.Builder
	err := templates.AlertsPanel(alertList, failedRules).Render(ctx, &buf)
	return buf.String(), err
}

// HandleAlerts runs the detector and patches the alerts panel. When every
// rule fails the panel shows the error instead.
func (h *SSEHandlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	sse := datastar.NewSSE(w, r)

	report, err := h.detector.DetectAnomalies(r.Context())
	if err != nil {
		logger.Error("detect anomalies", "error", err)
		sse.PatchElements(`<div id="alerts-panel"><p class="error">Alerts are unavailable right now</p></div>`)
		return
	}

	html, err := h.renderAlertsPanel(r.Context(), report.Alerts, report.FailedRules())
	if err != nil {
		logger.Error("render alerts panel", "error", err)
		return
	}
	sse.PatchElements(html)

	signals, err := json.Marshal(map[string]any{
		"alertCount": len(report.Alerts),
	})
	if err != nil {
		logger.Error("marshal alert signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleSummary pushes the headline numbers as the summary signal.
func (h *SSEHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	sse := datastar.NewSSE(w, r)

	summary, err := h.analytics.Summary(r.Context())
	if err != nil {
		logger.Warn("load summary", "error", err)
		sse.PatchElements(`<div id="summary-status">No data imported yet</div>`)
		return
	}

	signals, err := json.Marshal(map[string]any{
		"summary": summary,
	})
	if err != nil {
		logger.Error("marshal summary signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
