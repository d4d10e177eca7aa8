package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	limiter "github.com/ulule/limiter/v3"

	"github.com/SoftFusion-Technologies/backend-compras/internal/app"
	"github.com/SoftFusion-Technologies/backend-compras/internal/audit"
	"github.com/SoftFusion-Technologies/backend-compras/internal/common"
	"github.com/SoftFusion-Technologies/backend-compras/internal/config"
	"github.com/SoftFusion-Technologies/backend-compras/internal/events"
	"github.com/SoftFusion-Technologies/backend-compras/internal/health"
	"github.com/SoftFusion-Technologies/backend-compras/internal/notify"
	"github.com/SoftFusion-Technologies/backend-compras/internal/obs"
	"github.com/SoftFusion-Technologies/backend-compras/internal/purchase"
	"github.com/SoftFusion-Technologies/backend-compras/internal/ratelimit"
	"github.com/SoftFusion-Technologies/backend-compras/internal/resilience"
	"github.com/SoftFusion-Technologies/backend-compras/internal/security"
	"github.com/SoftFusion-Technologies/backend-compras/internal/supplier"
	"github.com/SoftFusion-Technologies/backend-compras/internal/taxcatalog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "compras")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "compras-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "compras-api"
	if cfg.DBMaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.DBMaxIdleConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if envBool("MIGRATE_ON_START", true) {
		m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("open migrations")
		}
		if err := app.RunMigrations(m); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrations")
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for tasks")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	writeLimiter := limiter.New(limiterStore, limiter.Rate{
		Period: cfg.RateLimitWindow,
		Limit:  int64(envInt("RATE_LIMIT_WRITE_MAX", 60)),
	})

	deps := app.Dependencies{
		Context:      context.Background(),
		DB:           pool,
		Redis:        redisClient,
		Validator:    validator.New(),
		Limiter:      writeLimiter,
		LimiterStore: limiterStore,
		TaskClient:   taskClient,
	}

	notifyStore := notify.NewStore(pool)
	dispatcher := &notify.Dispatcher{
		Store:              notifyStore,
		Client:             notify.HttpClient(int(cfg.WebhookRequestTimeout/time.Millisecond), false),
		Tasks:              taskClient,
		Breaker:            resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("webhook"),
		BackoffBaseSec:     cfg.WebhookBackoffBaseSec,
		DefaultMaxAttempts: cfg.WebhookDefaultMaxAttempts,
		Enabled:            cfg.WebhookDeliveryEnabled,
		Replay:             notify.RedisReplayProtector{Client: redisClient},
		ReplayTTL:          cfg.WebhookReplayTTL,
	}
	bus := &events.Bus{
		Store:     events.NewStore(pool),
		Scheduler: dispatcher,
	}

	catalogSvc := taxcatalog.NewService(
		taxcatalog.NewStore(pool),
		taxcatalog.NewCache(redisClient, cfg.TaxCatalogCacheTTL),
		logger,
	)
	catalogHandler := &taxcatalog.Handler{
		Svc:          catalogSvc,
		Validate:     deps.Validator,
		DefaultLimit: cfg.ListDefaultLimit,
		MaxLimit:     cfg.ListMaxLimit,
	}

	supplierStore := supplier.NewStore(pool)
	supplierHandler := &supplier.Handler{
		Store:        supplierStore,
		Validate:     deps.Validator,
		DefaultLimit: cfg.ListDefaultLimit,
		MaxLimit:     cfg.ListMaxLimit,
	}

	purchaseSvc := &purchase.Service{
		Store:     purchase.NewStore(pool),
		Suppliers: supplierStore,
		Catalog:   catalogSvc,
		Bus:       bus,
		Logger:    logger,
	}
	purchaseHandler := &purchase.Handler{
		Svc:            purchaseSvc,
		Validate:       deps.Validator,
		DefaultVATRate: decimal.NewFromFloat(cfg.DefaultVATRate),
		DefaultLimit:   cfg.ListDefaultLimit,
		MaxLimit:       cfg.ListMaxLimit,
	}

	auditSvc := &audit.Service{
		Store:        audit.NewStore(pool),
		Enabled:      cfg.AuditEnabled,
		SamplingRate: cfg.AuditSampleRate,
	}
	auditRecorder := audit.HTTPRecorder{
		Service: auditSvc,
		OnError: func(err error) { logger.Warn().Err(err).Msg("record audit entry") },
	}
	auditHandler := audit.Handler{Store: auditSvc.Store}

	notifyAdmin := &notify.AdminHandler{
		Store:        notifyStore,
		DefaultLimit: cfg.ListDefaultLimit,
		MaxLimit:     cfg.ListMaxLimit,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	rateLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return common.ClientIP(r) },
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	writeLimit := writeLimitMiddleware(deps.Limiter)

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(rateLimit.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/impuestos", func(t chi.Router) {
			t.Get("/", catalogHandler.List)
			t.Get("/{code}", catalogHandler.Get)
			t.Group(func(g chi.Router) {
				g.Use(writeLimit)
				g.Use(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "impuestos", ResourceIDParam: "code"}))
				g.Post("/", catalogHandler.Create)
				g.Put("/{code}", catalogHandler.Update)
				g.Delete("/{code}", catalogHandler.Delete)
			})
		})

		v.Route("/proveedores", func(p chi.Router) {
			p.Get("/", supplierHandler.List)
			p.Get("/{id}", supplierHandler.Get)
			p.Group(func(g chi.Router) {
				g.Use(writeLimit)
				g.Use(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "proveedores", ResourceIDParam: "id"}))
				g.Post("/", supplierHandler.Create)
				g.Put("/{id}", supplierHandler.Update)
			})
		})

		v.Route("/compras", func(c chi.Router) {
			c.Get("/", purchaseHandler.List)
			c.Get("/{id}", purchaseHandler.Get)
			c.Post("/preview", purchaseHandler.Preview)
			c.Group(func(g chi.Router) {
				g.Use(writeLimit)
				g.Use(idem.Middleware)
				g.Use(auditRecorder.Middleware(audit.HTTPConfig{ResourceType: "compras", ResourceIDParam: "id"}))
				g.Post("/", purchaseHandler.Create)
				g.Put("/{id}", purchaseHandler.Update)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(writeLimit)
			admin.Post("/webhooks", notifyAdmin.CreateEndpoint)
			admin.Put("/webhooks/{id}", notifyAdmin.UpdateEndpoint)
			admin.Get("/webhooks", notifyAdmin.ListEndpoints)
			admin.Get("/webhooks/{id}", notifyAdmin.GetEndpoint)
			admin.Delete("/webhooks/{id}", notifyAdmin.DeleteEndpoint)
			admin.Get("/webhook-deliveries", notifyAdmin.ListDeliveries)
			admin.Post("/webhook-deliveries/{id}/replay", notifyAdmin.ReplayDelivery)
			admin.Get("/audit-logs", auditHandler.List)
		})
	})

	if cfg.WebhookDeliveryEnabled {
		go func() {
			ticker := time.NewTicker(cfg.WebhookWorkerInterval)
			defer ticker.Stop()
			for range ticker.C {
				if err := dispatcher.WorkOnce(context.Background(), cfg.WebhookWorkerBatch); err != nil {
					logger.Error().Err(err).Msg("dispatch webhooks")
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// writeLimitMiddleware applies a tighter budget to mutating endpoints than
// the global sliding-window limiter.
func writeLimitMiddleware(l *limiter.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			lctx, err := l.Get(r.Context(), "write:"+common.ClientIP(r))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if lctx.Reached {
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "write rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
