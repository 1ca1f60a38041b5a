package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"growth-dashboard/internal/alerts"
	"growth-dashboard/internal/handlers"
	"growth-dashboard/internal/importer"
	"growth-dashboard/internal/services"
)

const (
	maxGoroutines    = 500
	readinessTimeout = time.Second
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	health      healthcheck.Handler
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// Deps carries everything the routes are served from.
type Deps struct {
	Analytics *services.Analytics
	Detector  *alerts.Detector
	Importer  *importer.Importer
	ImportDir string
	// DB backs the readiness check. Nil disables it.
	DB *sql.DB
}

func NewServer(deps Deps, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	if deps.DB != nil {
		health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(deps.DB, readinessTimeout))
	}

	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		health:      health,
		apiHandlers: handlers.NewAPIHandlers(deps.Analytics, deps.Detector, deps.Importer, deps.ImportDir, logger),
		sseHandlers: handlers.NewSSEHandlers(deps.Analytics, deps.Detector, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard and operational routes
	if templateHandlers != nil && templateHandlers.Dashboard != nil {
		s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	}
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /live", s.health.LiveEndpoint)
	s.mux.HandleFunc("GET /ready", s.health.ReadyEndpoint)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Alerts
	s.mux.HandleFunc("GET /api/alerts", s.apiHandlers.HandleAlerts)
	s.mux.HandleFunc("GET /api/alerts/q3-dip", s.apiHandlers.HandleQ3Dip)
	s.mux.HandleFunc("GET /api/alerts/quarter-dip", s.apiHandlers.HandleQuarterDip)

	// Dashboard read API
	s.mux.HandleFunc("GET /api/metrics/summary", s.apiHandlers.HandleSummary)
	s.mux.HandleFunc("GET /api/metrics/trends", s.apiHandlers.HandleTrends)
	s.mux.HandleFunc("GET /api/metrics/funnel", s.apiHandlers.HandleFunnel)
	s.mux.HandleFunc("GET /api/metrics/months", s.apiHandlers.HandleMonths)
	s.mux.HandleFunc("GET /api/keywords", s.apiHandlers.HandleKeywords)
	s.mux.HandleFunc("GET /api/keywords/categories", s.apiHandlers.HandleKeywordCategories)
	s.mux.HandleFunc("GET /api/keywords/stats", s.apiHandlers.HandleKeywordStats)
	s.mux.HandleFunc("GET /api/keywords/problems", s.apiHandlers.HandleProblemKeywords)
	s.mux.HandleFunc("GET /api/keywords/ai-overview-impact", s.apiHandlers.HandleAIOverviewImpact)
	s.mux.HandleFunc("GET /api/regions", s.apiHandlers.HandleRegionalData)
	s.mux.HandleFunc("GET /api/regions/breakdown", s.apiHandlers.HandleRegionBreakdown)
	s.mux.HandleFunc("GET /api/regions/countries", s.apiHandlers.HandleCountryBreakdown)
	s.mux.HandleFunc("GET /api/regions/cities", s.apiHandlers.HandleCityBreakdown)
	s.mux.HandleFunc("GET /api/regions/list", s.apiHandlers.HandleRegions)
	s.mux.HandleFunc("GET /api/regions/countries-list", s.apiHandlers.HandleCountries)
	s.mux.HandleFunc("GET /api/regions/cities-list", s.apiHandlers.HandleCities)
	s.mux.HandleFunc("GET /api/regions/underperforming", s.apiHandlers.HandleUnderperformingRegions)
	s.mux.HandleFunc("GET /api/channels", s.apiHandlers.HandleChannelData)
	s.mux.HandleFunc("GET /api/channels/comparison", s.apiHandlers.HandleChannelComparison)
	s.mux.HandleFunc("GET /api/channels/list", s.apiHandlers.HandleChannels)
	s.mux.HandleFunc("GET /api/channels/trends", s.apiHandlers.HandleChannelTrend)
	s.mux.HandleFunc("GET /api/channels/low-performing", s.apiHandlers.HandleLowPerformingChannels)

	// Data import
	s.mux.HandleFunc("GET /api/data/import-history", s.apiHandlers.HandleImportHistory)
	s.mux.HandleFunc("POST /api/data/import", s.apiHandlers.HandleImport)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/alerts", s.sseHandlers.HandleAlerts)
	s.mux.HandleFunc("GET /sse/summary", s.sseHandlers.HandleSummary)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
