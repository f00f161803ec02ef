package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/coreb-invoice/internal/cache"
	"github.com/noah-isme/coreb-invoice/internal/catalog"
	"github.com/noah-isme/coreb-invoice/internal/config"
	"github.com/noah-isme/coreb-invoice/internal/health"
	"github.com/noah-isme/coreb-invoice/internal/invoice"
	"github.com/noah-isme/coreb-invoice/internal/lock"
	"github.com/noah-isme/coreb-invoice/internal/obs"
	"github.com/noah-isme/coreb-invoice/internal/pdf"
	"github.com/noah-isme/coreb-invoice/internal/ratelimit"
	"github.com/noah-isme/coreb-invoice/internal/resilience"
	"github.com/noah-isme/coreb-invoice/internal/security"
)

// NewInvoiceService wires the invoice service onto deps. With Redis the
// snapshots fall back to an in-process cache; without it they live there.
func NewInvoiceService(cfg *config.Config, deps *Dependencies) (*invoice.Service, error) {
	var primary, fallback cache.Store = cache.NewMemoryStore(10 * time.Minute), nil
	if deps.Redis != nil {
		breaker := resilience.NewBreaker("snapshot_redis", cfg.SnapshotBreakerMinCalls, cfg.SnapshotBreakerRatio, cfg.SnapshotBreakerOpenFor).
			WithLogger(deps.Logger)
		primary, fallback = cache.WithBreaker(cache.NewRedisStore(deps.Redis, "coreb"), breaker), primary
	}

	svcCfg := invoice.ServiceConfig{
		Store: invoice.NewPGStore(deps.DB),
		Catalog: catalog.FileSource{
			ServicesPath:    cfg.CatalogServicesPath,
			NoUnitPricePath: cfg.CatalogNoUnitPricePath,
		},
		Snapshots: invoice.NewSnapshots(primary, fallback, cfg.SnapshotTTL, deps.Logger),
		Filler:    pdf.MarotoFiller{Title: cfg.PDFTitle},
		LockTTL:   cfg.LockTTL,
		Validate:  deps.Validator,
		Logger:    deps.Logger.With().Str("component", "invoice").Logger(),
	}
	if cfg.ProjectLockEnabled && deps.Redis != nil {
		svcCfg.Locker = lock.Locker{R: deps.Redis, Prefix: invoice.LockPrefix, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.LockTTL}
	}
	return invoice.NewService(svcCfg)
}

// NewRouter builds the HTTP handler tree.
func NewRouter(cfg *config.Config, deps *Dependencies, svc invoice.API) http.Handler {
	logger := deps.Logger

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		if err := resilience.RegisterMetrics(nil); err != nil {
			logger.Error().Err(err).Msg("register breaker metrics")
		}
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.Obs.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Invoice-Payable"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production", NoStore: true}.Middleware)

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Checker: deps.Checker()}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	limit := ratelimit.Handler{
		Limiter: deps.Limiter,
		Key:     ratelimit.ByClientIP(cfg.TrustProxy),
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	invoices := &invoice.Handler{
		Svc:            svc,
		DefaultPerPage: cfg.ListDefaultPerPage,
		MaxPerPage:     cfg.ListMaxPerPage,
	}
	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limit.Middleware)
		v.Use(security.BodyLimit{Max: cfg.MaxFormBytes}.Middleware)
		v.Route("/invoices", invoices.Routes)
	})

	return r
}

// Build wires the service and router together.
func Build(cfg *config.Config, deps *Dependencies) (http.Handler, error) {
	svc, err := NewInvoiceService(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("initialise invoice service: %w", err)
	}
	return NewRouter(cfg, deps, svc), nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
