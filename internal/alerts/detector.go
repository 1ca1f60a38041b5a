package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"growth-dashboard/internal/config"
	"growth-dashboard/internal/models"
	"growth-dashboard/internal/observability"
)

var ErrAllRulesFailed = errors.New("all alert rules failed")

type Options struct {
	Thresholds config.Thresholds
	// FailFast makes the first rule error abort the whole run instead of
	// being reported next to the other rules' alerts.
	FailFast bool
	// Timeout bounds one detection run. Zero means no deadline.
	Timeout time.Duration
	// Q3Current and Q3Previous are the quarters compared by DetectQ3Dip.
	Q3Current  Quarter
	Q3Previous Quarter
	Logger     *slog.Logger
}

// Detector runs the alert rules against a MetricsReader. It holds no mutable
// state and can be shared between goroutines.
type Detector struct {
	reader MetricsReader
	opts   Options
	rules  []Rule
}

func New(reader MetricsReader, opts Options) *Detector {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Thresholds.ChurnWindowMonths == 0 {
		opts.Thresholds = config.DefaultThresholds()
	}
	if opts.Q3Current.IsZero() {
		opts.Q3Current = Quarter{Year: 2025, Q: 3}
	}
	if opts.Q3Previous.IsZero() {
		opts.Q3Previous = opts.Q3Current.Previous()
	}

	return &Detector{
		reader: reader,
		opts:   opts,
		rules:  Battery(),
	}
}

// NewFromConfig builds a Detector from the alerts section of the config.
func NewFromConfig(reader MetricsReader, cfg config.AlertsConfig, logger *slog.Logger) (*Detector, error) {
	current, err := ParseQuarter(cfg.Q3Current)
	if err != nil {
		return nil, fmt.Errorf("q3 current quarter: %w", err)
	}
	previous, err := ParseQuarter(cfg.Q3Previous)
	if err != nil {
		return nil, fmt.Errorf("q3 previous quarter: %w", err)
	}

	return New(reader, Options{
		Thresholds: cfg.Thresholds,
		FailFast:   cfg.FailFast,
		Timeout:    cfg.RunTimeout,
		Q3Current:  current,
		Q3Previous: previous,
		Logger:     logger,
	}), nil
}

func (d *Detector) Thresholds() config.Thresholds {
	return d.opts.Thresholds
}

type RuleFailure struct {
	Rule  string `json:"rule"`
	Error string `json:"error"`
}

// Report is the outcome of one DetectAnomalies run. Alerts keep the rule
// order of Battery; Failures lists the rules that could not be evaluated.
type Report struct {
	Alerts   []models.Alert `json:"alerts"`
	Failures []RuleFailure  `json:"failedRules,omitempty"`
}

func (r *Report) FailedRules() []string {
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.Rule)
	}
	return names
}

// DetectAnomalies evaluates every rule of the battery concurrently.
//
// A failing rule is logged and listed in Report.Failures while the others
// still contribute their alerts; an error is returned only when no rule
// succeeded. With Options.FailFast the first failure cancels the run and is
// returned.
func (d *Detector) DetectAnomalies(ctx context.Context) (*Report, error) {
	logger := observability.LoggerFrom(ctx, d.opts.Logger)

	ctx, span := observability.StartSpan(ctx, "alerts.detect_anomalies")
	defer span.End(logger)

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	results := make([]*models.Alert, len(d.rules))
	errs := make([]error, len(d.rules))

	if d.opts.FailFast {
		g, gctx := errgroup.WithContext(ctx)
		for i, rule := range d.rules {
			g.Go(func() error {
				alert, err := d.run(gctx, rule)
				if err != nil {
					return fmt.Errorf("rule %s: %w", rule.Name, err)
				}
				results[i] = alert
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.SetError(err)
			return nil, err
		}
	} else {
		var g errgroup.Group
		for i, rule := range d.rules {
			g.Go(func() error {
				results[i], errs[i] = d.run(ctx, rule)
				return nil
			})
		}
		g.Wait()
	}

	report := &Report{Alerts: make([]models.Alert, 0, len(d.rules))}
	for i, rule := range d.rules {
		if errs[i] != nil {
			logger.Error("alert rule failed", "rule", rule.Name, "error", errs[i])
			report.Failures = append(report.Failures, RuleFailure{Rule: rule.Name, Error: errs[i].Error()})
			continue
		}
		if results[i] != nil {
			report.Alerts = append(report.Alerts, *results[i])
		}
	}

	if len(d.rules) > 0 && len(report.Failures) == len(d.rules) {
		err := fmt.Errorf("%w: %w", ErrAllRulesFailed, errors.Join(errs...))
		span.SetError(err)
		return nil, err
	}

	logger.Debug("anomaly detection finished",
		"alerts", len(report.Alerts),
		"failed_rules", len(report.Failures),
	)
	return report, nil
}

// DetectQ3Dip runs the fixed quarter comparison outside the battery.
func (d *Detector) DetectQ3Dip(ctx context.Context) (*models.Alert, error) {
	return d.runStandalone(ctx, Rule{
		Name: models.AlertQ3Dip,
		Eval: QuarterDip(models.AlertQ3Dip, d.opts.Q3Current, d.opts.Q3Previous),
	})
}

// DetectQuarterDip compares the latest quarter with data against the one
// before it.
func (d *Detector) DetectQuarterDip(ctx context.Context) (*models.Alert, error) {
	return d.runStandalone(ctx, Rule{Name: models.AlertQuarterDip, Eval: RollingQuarterDip})
}

func (d *Detector) runStandalone(ctx context.Context, rule Rule) (*models.Alert, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	alert, err := d.run(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
	}
	return alert, nil
}

func (d *Detector) run(ctx context.Context, rule Rule) (*models.Alert, error) {
	ctx, span := observability.StartSpan(ctx, "alerts.rule")
	span.SetTag("rule", rule.Name)
	defer span.End(d.opts.Logger)

	start := time.Now()
	alert, err := rule.Eval(ctx, d.reader, d.opts.Thresholds)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		span.SetError(err)
		observability.ObserveRule(rule.Name, observability.OutcomeError, elapsed)
		return nil, err
	case alert == nil:
		observability.ObserveRule(rule.Name, observability.OutcomeNoAlert, elapsed)
	default:
		observability.ObserveRule(rule.Name, observability.OutcomeAlert, elapsed)
		observability.AlertsEmitted.WithLabelValues(alert.Type, string(alert.Severity)).Inc()
	}
	return alert, nil
}
