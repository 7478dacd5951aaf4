package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/insightql/insightql/internal/agent"
	"github.com/insightql/insightql/internal/guardrails"
	"github.com/insightql/insightql/internal/handler"
	"github.com/insightql/insightql/internal/insights"
	"github.com/insightql/insightql/internal/middleware"
	"github.com/insightql/insightql/internal/schemaindex"
	"github.com/insightql/insightql/internal/security"
	"github.com/insightql/insightql/internal/warehouse"
	"github.com/rs/zerolog/log"
)

// setupRoutes returns (router, warehouse, error) so the warehouse can be
// closed on shutdown
func (s *Server) setupRoutes(ctx context.Context) (http.Handler, warehouse.Runner, error) {
	cfg := s.cfg

	// ─── Warehouse ───────────────────────────────────────────────────────────────
	wh, err := warehouse.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ─── Guardrails ──────────────────────────────────────────────────────────────
	dialect, err := guardrails.ParseDialect(cfg.SQLDialect)
	if err != nil {
		return nil, nil, err
	}
	guard, err := guardrails.New(guardrails.Config{
		MaxRows:           cfg.MaxResultRows,
		AllowedNamespaces: cfg.AllowedNamespaces,
		Dialect:           dialect,
		BlockedKeywords:   cfg.BlockedKeywords,
		BlockedFunctions:  cfg.BlockedFunctions,
	})
	if err != nil {
		return nil, nil, err
	}

	// ─── Schema index ────────────────────────────────────────────────────────────
	var ix *schemaindex.Index
	if cfg.SchemaIndexEnabled {
		ix, err = schemaindex.New(schemaindex.Options{
			Scheme:       cfg.ElasticsearchScheme,
			Host:         cfg.ElasticsearchHost,
			Port:         cfg.ElasticsearchPort,
			User:         cfg.ElasticsearchUser,
			Password:     cfg.ElasticsearchPassword,
			VerifyCerts:  cfg.ElasticsearchVerifyCerts,
			MaxRetries:   cfg.ElasticsearchMaxRetries,
			SchemaIndex:  cfg.SchemaIndexName,
			MetricsIndex: cfg.MetricsIndexName,
		})
		if err != nil {
			log.Warn().Err(err).Msg("schema index unavailable")
			ix = nil
		}
	}

	// Startup summary. Disabled features are easy to miss otherwise.
	log.Info().
		Str("warehouse", wh.Name()).
		Str("dialect", cfg.SQLDialect).
		Int("max_result_rows", cfg.MaxResultRows).
		Strs("allowed_namespaces", cfg.AllowedNamespaces).
		Bool("schema_index_enabled", ix != nil).
		Bool("agent_enabled", cfg.AnthropicAPIKey != "").
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("data_masking", cfg.EnableDataMasking).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("service configuration")

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Security ────────────────────────────────────────────────────────────────
	piiDetector := security.NewPIIDetector(cfg.PIIKeywords)
	promptVal := security.NewPromptValidator()
	costTracker := security.NewCostTracker(cfg.MaxQueryBytesProcessed)
	dataMasker := security.NewDataMasker(cfg.SensitiveColumns)
	auditLogger := security.NewAuditLogger(cfg.EnableAuditLogging)

	// ─── AI agent ────────────────────────────────────────────────────────────────
	var askH *agent.AskHandler
	if cfg.AnthropicAPIKey != "" {
		model := cfg.ModelList["anthropic"]
		ag := agent.New(cfg.AnthropicAPIKey, model, cfg.AnthropicBaseURL)
		gen := insights.NewGenerator(cfg.AnthropicAPIKey, model, cfg.AnthropicBaseURL)
		askH = agent.NewAskHandler(ag, wh, guard, ix, gen, piiDetector, promptVal, costTracker, dataMasker, auditLogger)
	} else {
		log.Warn().Msg("ANTHROPIC_API_KEY not set - /api/v1/ask disabled")
	}

	// ─── Handlers ────────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(wh, ix)
	queryH := handler.NewQueryHandler(wh, guard, costTracker, dataMasker, auditLogger, cfg.EnableDataMasking)
	tablesH := handler.NewTablesHandler(wh)
	askHTTPH := handler.NewAskHandler(askH)

	var invalidate func()
	if askH != nil {
		invalidate = askH.InvalidateSchemaCache
	}
	schemaH := handler.NewSchemaHandler(ix, wh, invalidate)

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	// Auth + rate limiting for API routes
	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.RateLimitPerMinute),
	}
	if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/query", queryH.Execute)
			r.Post("/ask", askHTTPH.Ask)

			r.Get("/tables", tablesH.ListTables)
			r.Get("/tables/{table}", tablesH.GetTable)

			r.Route("/schema", func(r chi.Router) {
				r.Get("/search", schemaH.Search)
				r.Post("/reindex", schemaH.Reindex)
			})
		})
	})

	return r, wh, nil
}
