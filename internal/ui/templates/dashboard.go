package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"growth-dashboard/internal/models"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

// Dashboard is the single page shell. Panels are filled over SSE once the
// page has loaded.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Growth Dashboard</title>
<script type="module" src="`+datastarScript+`"></script>
</head>
<body data-signals="{summary: {}, alertCount: 0}">
<header><h1>Growth Dashboard</h1></header>
<main>
<section id="summary" data-on-load="@get('/sse/summary')">
<div id="summary-status"></div>
<div class="metric"><span>MRR</span> <strong data-text="$summary.mrr ? $summary.mrr.current : '-'"></strong></div>
<div class="metric"><span>Signups</span> <strong data-text="$summary.signups ? $summary.signups.current : '-'"></strong></div>
<div class="metric"><span>Churn</span> <strong data-text="$summary.churnRate !== undefined ? ($summary.churnRate * 100).toFixed(1) + '%' : '-'"></strong></div>
</section>
<section data-on-load="@get('/sse/alerts')">
<h2>Alerts <span data-text="$alertCount"></span></h2>
<div id="alerts-panel">Loading alerts...</div>
</section>
</main>
</body>
</html>
`)
		return err
	})
}

var alertsPanelTemplate = template.Must(template.New("alertsPanel").Parse(
	`<div id="alerts-panel">` +
		`{{if .Alerts}}<ul class="alerts">` +
		`{{range .Alerts}}<li class="alert alert-{{.Severity}}" data-type="{{.Type}}"><strong>{{.Title}}</strong><p>{{.Message}}</p></li>{{end}}` +
		`</ul>{{else}}<p class="empty">No anomalies detected</p>{{end}}` +
		`{{if .FailedRules}}<p class="warning">Could not evaluate: {{range $i, $rule := .FailedRules}}{{if $i}}, {{end}}{{$rule}}{{end}}</p>{{end}}` +
		`</div>`))

type alertsPanelData struct {
	Alerts      []models.Alert
	FailedRules []string
}

// AlertsPanel renders the alert list that replaces #alerts-panel.
func AlertsPanel(alerts []models.Alert, failedRules []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return alertsPanelTemplate.Execute(w, alertsPanelData{Alerts: alerts, FailedRules: failedRules})
	})
}
