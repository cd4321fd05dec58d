package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/eoafashion/storefront-api/internal/app"
	"github.com/eoafashion/storefront-api/internal/audit"
	"github.com/eoafashion/storefront-api/internal/cart"
	"github.com/eoafashion/storefront-api/internal/catalog"
	"github.com/eoafashion/storefront-api/internal/checkout"
	"github.com/eoafashion/storefront-api/internal/common"
	"github.com/eoafashion/storefront-api/internal/config"
	"github.com/eoafashion/storefront-api/internal/health"
	"github.com/eoafashion/storefront-api/internal/lock"
	"github.com/eoafashion/storefront-api/internal/obs"
	"github.com/eoafashion/storefront-api/internal/payment"
	"github.com/eoafashion/storefront-api/internal/ratelimit"
	"github.com/eoafashion/storefront-api/internal/resilience"
	"github.com/eoafashion/storefront-api/internal/security"
	"github.com/eoafashion/storefront-api/internal/session"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().
		Str("env", cfg.AppEnv).
		Str("component", "api").
		Logger()
	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	if err := resilience.RegisterMetrics(nil); err != nil {
		logger.Error().Err(err).Msg("register outbound metrics")
	}
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.HTTPBucketsMS), nil)

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName:   "storefront-api",
		Endpoint:      cfg.OTLPEndpoint,
		Exporter:      cfg.TracingExporter,
		SamplingRatio: cfg.TraceSampleRatio,
		Environment:   cfg.AppEnv,
		Version:       version,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = app.NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	store, err := app.NewCartStore(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("cart store")
	}
	promos, err := app.NewPromoTable(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("promo table")
	}
	cartService := &cart.Service{
		Store:      store,
		Promos:     promos,
		LivePromos: cfg.PromoRecomputeOnChange,
		Logger:     logger.With().Str("module", "cart").Logger(),
	}

	issuer := session.Issuer{Secret: []byte(cfg.CartTokenSecret), TTL: cfg.CartTokenTTL}
	cartToken := session.Middleware{
		Issuer: issuer,
		CartID: func(r *http.Request) string { return chi.URLParam(r, "id") },
	}

	checkoutHTTP, checkoutBreaker := app.NewCheckoutHTTP(cfg, logger)
	checkoutService := &checkout.Service{
		Carts: cartService,
		Sessions: payment.HTTPSessions{
			Endpoint: cfg.CheckoutSessionURL,
			APIKey:   cfg.CheckoutAPIKey,
			HTTP:     checkoutHTTP,
			Logger:   logger,
		},
		Currency:   cfg.Currency,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		Logger:     logger.With().Str("module", "checkout").Logger(),
	}
	if totals, err := checkout.NewTotalsHistogram(app.Meter("checkout")); err != nil {
		logger.Error().Err(err).Msg("checkout totals histogram")
	} else {
		checkoutService.Totals = totals
	}
	if redisClient != nil {
		checkoutService.Lock = lock.Locker{R: redisClient, RetryBackoff: 50 * time.Millisecond, MaxWait: cfg.CheckoutLockWait}
	}

	var taskClient *asynq.Client
	if cfg.AuditEnabled() && cfg.RedisURL != "" {
		taskClient, err = app.NewTaskClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("audit task client")
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
		checkoutService.Audit = audit.Enqueuer{Client: taskClient, Queue: cfg.AuditQueue, MaxRetry: cfg.AuditMaxRetry}
	} else {
		logger.Info().Msg("checkout audit disabled")
	}

	ipLimiter, err := app.NewIPLimiter(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("ip rate limiter")
	}
	onLimiterError := func(err error) {
		logger.Warn().Err(err).Msg("rate_limiter_unavailable")
	}
	ipLimit := ratelimit.Handler{Limiter: ipLimiter, Key: ratelimit.ByClientIP, OnError: onLimiterError}
	promoLimit := ratelimit.Handler{Limiter: app.NewPromoLimiter(cfg, redisClient), Key: ratelimit.ByCart, OnError: onLimiterError}

	catalogHandler := catalog.Handler{Currency: cfg.Currency, DefaultPerPage: 20}
	cartHandler := &cart.Handler{Svc: cartService, Tokens: issuer, Currency: cfg.Currency}
	checkoutHandler := &checkout.Handler{Svc: checkoutService}

	var probes []health.Probe
	if redisClient != nil {
		probes = append(probes, health.Probe{
			Name:    "redis",
			Timeout: 500 * time.Millisecond,
			Check:   func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	healthHandler := health.Handler{
		Probes: probes,
		Info:   map[string]health.Informer{app.CheckoutTarget: checkoutBreaker},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.Tracing("http.server"))
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.EnableHSTS, HSTSMaxAge: 31536000, HSTSIncludeSubdomains: true}.Middleware)
	r.Use(security.CORS(allowedOrigins(cfg)))

	r.Handle("/metrics", promhttp.Handler())
	if cfg.PprofUser != "" {
		r.Mount("/debug", protectPprof(middleware.Profiler(), cfg.PprofUser, cfg.PprofPassword))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(ipLimit.Middleware)
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.ProductDetail)

		v.Post("/carts", cartHandler.Create)
		v.Route("/carts/{id}", func(c chi.Router) {
			c.Use(cartToken.Require)
			c.Get("/", cartHandler.Get)
			c.Post("/items", cartHandler.AddItem)
			c.Delete("/items", cartHandler.Clear)
			c.Patch("/items/{lineId}", cartHandler.UpdateItem)
			c.Delete("/items/{lineId}", cartHandler.RemoveItem)
			c.With(promoLimit.Middleware).Post("/promo", cartHandler.ApplyPromo)
			c.Delete("/promo", cartHandler.RemovePromo)
			if redisClient != nil {
				idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL, Prefix: "idem:checkout:"}
				c.With(idem.Middleware).Post("/checkout", checkoutHandler.Checkout)
			} else {
				c.Post("/checkout", checkoutHandler.Checkout)
			}
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("server starting")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		shutdown(srv, cfg.ShutdownGracePeriod, logger)
	}
}

func shutdown(srv *http.Server, grace time.Duration, logger zerolog.Logger) {
	health.SetReady(false)
	logger.Info().Dur("grace", grace).Msg("server draining")
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
		return
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
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
