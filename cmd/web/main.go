package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"growth-dashboard/internal/alerts"
	"growth-dashboard/internal/config"
	"growth-dashboard/internal/importer"
	"growth-dashboard/internal/middleware"
	"growth-dashboard/internal/observability"
	"growth-dashboard/internal/server"
	"growth-dashboard/internal/services"
	"growth-dashboard/internal/store"
	"growth-dashboard/internal/ui/templates"
)

const (
	version       = "1.0.0"
	renderTimeout = 10 * time.Second
	importTimeout = 5 * time.Minute
	cacheMaxAge   = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// app holds the wiring shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	detector  *alerts.Detector
	analytics *services.Analytics
	importer  *importer.Importer

	closeOnce sync.Once
	closeErr  error
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	detector, err := alerts.NewFromConfig(st, cfg.Alerts, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("configure detector: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		detector:  detector,
		analytics: services.NewAnalytics(st, cfg.Alerts.Thresholds, logger),
		importer:  importer.New(st, logger),
	}, nil
}

// Close releases the store. Later calls return the first call's result.
func (a *app) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.store.Close()
	})
	return a.closeErr
}

// handler builds the routed, middleware-wrapped HTTP handler.
func (a *app) handler() http.Handler {
	srv := server.NewServer(server.Deps{
		Analytics: a.analytics,
		Detector:  a.detector,
		Importer:  a.importer,
		ImportDir: a.cfg.Database.ImportDir,
		DB:        a.store.DB(),
	}, a.logger, &server.TemplateHandlers{Dashboard: handleDashboard})

	rateLimiter := middleware.NewRateLimiter(a.cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(a.logger),
		middleware.RequestID(),
		middleware.Logger(a.logger),
		middleware.Tracing(a.logger),
		middleware.SecurityHeaders(),
		middleware.CORS(a.cfg.Security),
		middleware.TrustedProxy(a.cfg.Security),
		middleware.RateLimit(rateLimiter, a.logger),
	)

	return middlewareChain(srv)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "growth-dashboard",
		Short:        "Sales and marketing growth dashboard",
		Long:         "growth-dashboard imports marketing metric exports into SQLite, serves the dashboard API and flags anomalies.",
		Version:      version,
		SilenceUsage: true,
	}

	serve := newServeCmd()
	root.RunE = serve.RunE
	root.AddCommand(serve, newImportCmd(), newAlertsCmd())
	return root
}

// loadApp reads the configuration and opens the store. CLI commands log to
// stderr so stdout only carries their output.
func loadApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.NewLoggerTo(logOut, cfg.Logger)
	slog.SetDefault(logger)

	return newApp(cfg, logger)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(os.Stdout)
			if err != nil {
				return err
			}

			a.logger.Info("starting application",
				"version", version,
				"address", a.cfg.Address(),
				"database", a.store.Path(),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.Database.ImportOnStart {
				importCtx, cancel := context.WithTimeout(ctx, importTimeout)
				result, err := a.importer.ImportDir(importCtx, a.cfg.Database.ImportDir)
				cancel()
				if err != nil {
					a.logger.Error("import on start failed", "dir", a.cfg.Database.ImportDir, "error", err)
				} else {
					a.logger.Info("import on start finished", "records", result.RecordCount)
				}
			}

			httpServer := &http.Server{
				Addr:         a.cfg.Address(),
				Handler:      a.handler(),
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				IdleTimeout:  a.cfg.Server.IdleTimeout,
			}

			gracefulServer := server.NewGracefulServer(httpServer, a.logger, a.cfg.Server)
			gracefulServer.RegisterShutdownHook("store", func(ctx context.Context) error {
				a.logger.Info("closing metric store")
				return a.Close()
			})

			if err := gracefulServer.Run(ctx); err != nil {
				a.logger.Error("server failed", "error", err)
				a.Close()
				return err
			}

			a.logger.Info("application stopped gracefully")
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir]",
		Short: "Import keywords.csv, regional.csv, monthly.csv and channels.csv",
		Long:  "Replaces the stored metrics with the CSV exports in dir (default: IMPORT_DIR).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			dir := a.cfg.Database.ImportDir
			if len(args) == 1 {
				dir = args[0]
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), importTimeout)
			defer cancel()

			result, err := a.importer.ImportDir(ctx, dir)
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), dir, result)
			return nil
		},
	}
}

func printImport(w io.Writer, dir string, result *importer.Result) {
	fmt.Fprintf(w, "Imported %s records from %s\n", humanize.Comma(int64(result.RecordCount)), dir)
	fmt.Fprintf(w, "  keywords: %s\n", humanize.Comma(int64(result.Breakdown.Keywords)))
	fmt.Fprintf(w, "  regional: %s\n", humanize.Comma(int64(result.Breakdown.Regional)))
	fmt.Fprintf(w, "  monthly:  %s\n", humanize.Comma(int64(result.Breakdown.Monthly)))
	fmt.Fprintf(w, "  channels: %s\n", humanize.Comma(int64(result.Breakdown.Channels)))
}

func newAlertsCmd() *cobra.Command {
	var q3, quarter bool

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Run the anomaly detector once and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return runAlerts(cmd.Context(), cmd.OutOrStdout(), a.detector, q3, quarter)
		},
	}

	cmd.Flags().BoolVar(&q3, "q3", false, "Only run the fixed Q3 traffic dip check")
	cmd.Flags().BoolVar(&quarter, "quarter", false, "Only run the rolling quarter traffic dip check")
	cmd.MarkFlagsMutuallyExclusive("q3", "quarter")
	return cmd
}

func runAlerts(ctx context.Context, w io.Writer, detector *alerts.Detector, q3, quarter bool) error {
	var out any

	switch {
	case q3:
		alert, err := detector.DetectQ3Dip(ctx)
		if err != nil {
			return err
		}
		out = map[string]any{"success": true, "alert": alert}
	case quarter:
		alert, err := detector.DetectQuarterDip(ctx)
		if err != nil {
			return err
		}
		out = map[string]any{"success": true, "alert": alert}
	default:
		report, err := detector.DetectAnomalies(ctx)
		if err != nil {
			return err
		}
		out = struct {
			Success bool `json:"success"`
			*alerts.Report
		}{true, report}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
