package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"growth-dashboard/internal/models"
)

func TestNewSSEHandlers(t *testing.T) {
	env := newTestEnv(t, false)

	if env.sse == nil {
		t.Fatal("NewSSEHandlers() returned nil")
	}
	if env.sse.analytics == nil || env.sse.detector == nil {
		t.Error("NewSSEHandlers() should set analytics and detector")
	}
}

func TestSSEHandlers_renderAlertsPanel(t *testing.T) {
	env := newTestEnv(t, false)

	alertList := []models.Alert{
		{
			Type:     models.AlertChurnSpike,
			Severity: models.SeverityCritical,
			Title:    "High Churn Rate",
			Message:  "Churn rate at 7.00% (above 5% threshold)",
		},
		{
			Type:     models.AlertLowConversionKeywords,
			Severity: models.SeverityCritical,
			Title:    "<script>alert(1)</script>",
			Message:  "escaped",
		},
	}

	html, err := env.sse.renderAlertsPanel(context.Background(), alertList, []string{models.AlertSocialChannelWaste})
	if err != nil {
		t.Fatalf("renderAlertsPanel() failed: %v", err)
	}

	expectedContent := []string{
		`<div id="alerts-panel">`,
		`class="alert alert-critical"`,
		`data-type="churn_spike"`,
		"High Churn Rate",
		"Churn rate at 7.00% (above 5% threshold)",
		"&lt;script&gt;",
		"Could not evaluate: social_channel_waste",
	}
	for _, content := range expectedContent {
		if !strings.Contains(html, content) {
			t.Errorf("expected HTML to contain %q", content)
		}
	}

	if strings.Contains(html, "<script>") {
		t.Error("alert text must be escaped")
	}
}

func TestSSEHandlers_renderAlertsPanel_Empty(t *testing.T) {
	env := newTestEnv(t, false)

	html, err := env.sse.renderAlertsPanel(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("renderAlertsPanel() failed: %v", err)
	}
	if !strings.Contains(html, "No anomalies detected") {
		t.Errorf("expected empty state, got %s", html)
	}
	if strings.Contains(html, "Could not evaluate") {
		t.Error("no failure notice expected")
	}
}

func TestSSEHandlers_Endpoints(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		url      string
		contains []string
	}{
		{
			name:     "alerts",
			handler:  env.sse.HandleAlerts,
			url:      "/sse/alerts",
			contains: []string{"alerts-panel", "High Churn Rate", "alertCount"},
		},
		{
			name:     "summary",
			handler:  env.sse.HandleSummary,
			url:      "/sse/summary",
			contains: []string{"summary", "currentMonth", "2025-09"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			tt.handler(w, req)

			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
				t.Errorf("expected text/event-stream content type, got %q", ct)
			}

			body := w.Body.String()
			if !strings.Contains(body, "event:") || !strings.Contains(body, "data:") {
				t.Fatalf("expected SSE events in body, got %q", body)
			}
			for _, content := range tt.contains {
				if !strings.Contains(body, content) {
					t.Errorf("expected body to contain %q", content)
				}
			}
		})
	}
}

func TestSSEHandlers_HandleSummary_NoData(t *testing.T) {
	env := newTestEnv(t, false)

	w := httptest.NewRecorder()
	env.sse.HandleSummary(w, httptest.NewRequest(http.MethodGet, "/sse/summary", nil))

	if body := w.Body.String(); !strings.Contains(body, "No data imported yet") {
		t.Errorf("expected the empty notice, got %q", body)
	}
}

func TestSSEHandlers_HandleAlerts_StoreClosed(t *testing.T) {
	env := newTestEnv(t, true)
	env.store.Close()

	w := httptest.NewRecorder()
	env.sse.HandleAlerts(w, httptest.NewRequest(http.MethodGet, "/sse/alerts", nil))

	if body := w.Body.String(); !strings.Contains(body, "Alerts are unavailable right now") {
		t.Errorf("expected the unavailable notice, got %q", body)
	}
}
