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

	validator "github.com/go-playground/validator/v10"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-bazaar/internal/app"
	"github.com/noah-isme/backend-bazaar/internal/auth"
	"github.com/noah-isme/backend-bazaar/internal/cache"
	"github.com/noah-isme/backend-bazaar/internal/cart"
	"github.com/noah-isme/backend-bazaar/internal/catalog"
	"github.com/noah-isme/backend-bazaar/internal/checkout"
	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/config"
	"github.com/noah-isme/backend-bazaar/internal/coupon"
	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/health"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/obs"
	"github.com/noah-isme/backend-bazaar/internal/order"
	"github.com/noah-isme/backend-bazaar/internal/ratelimit"
	"github.com/noah-isme/backend-bazaar/internal/security"
	"github.com/noah-isme/backend-bazaar/internal/shipping"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "bazaar")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "bazaar-api",
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
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := app.NewDBPool(ctx, cfg, "bazaar-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if dir := envOrDefault("DB_MIGRATIONS_DIR", "migrations"); envBool("DB_MIGRATE_ON_START", true) {
		if err := app.RunMigrations(cfg, dir); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	redisClient, err := app.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}

	st := store.New(pool)
	validate := validator.New()

	tokens, err := auth.NewTokenService(auth.Config{Secret: cfg.JWTSecret})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token service")
	}
	authMW := auth.Middleware{Tokens: tokens}
	authHandler := &auth.Handler{Q: st, Tokens: tokens}

	couponSvc := &coupon.Service{
		Q:                   st,
		Cache:               cache.New(redisClient, "bazaar"),
		CacheTTL:            cfg.CouponCacheTTL,
		Currency:            cfg.CurrencyCode,
		PerUserLimitDefault: cfg.CouponPerUserLimit,
	}
	cartSvc := &cart.Service{Q: st, Coupons: couponSvc, TTL: cfg.CartTTL}
	shippingSvc := &shipping.Service{
		Q:        st,
		Cache:    cache.New(redisClient, "bazaar"),
		CacheTTL: cfg.ShippingCacheTTL,
		Currency: cfg.CurrencyCode,
	}

	bus := &events.Bus{Store: st}

	checkoutSvc := &checkout.Service{
		Runner:   checkout.PoolRunner{Pool: pool, Store: st},
		Shipping: shippingSvc,
		Coupons:  couponSvc,
		Events:   bus,
		TaxBps:   int(cfg.TaxRateBPS),
		Currency: cfg.CurrencyCode,
	}

	idem := common.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)

	catalogSvc := &catalog.Service{Q: st, Cache: cache.New(redisClient, "bazaar"), CacheTTL: cfg.CatalogCacheTTL}
	catalogHandler := &catalog.Handler{Svc: catalogSvc}

	cartHandler := &cart.Handler{Svc: cartSvc}
	couponHandler := &coupon.Handler{
		Svc:      couponSvc,
		Validate: validate,
		Subtotal: func(ctx context.Context, cartID string, user coupon.User) (money.Money, error) {
			view, err := cartSvc.Evaluate(ctx, cartID, user)
			if err != nil {
				return money.Money{}, err
			}
			return view.Subtotal, nil
		},
	}
	shippingHandler := &shipping.Handler{
		Svc: shippingSvc,
		Subtotal: func(ctx context.Context, cartID string) (money.Money, error) {
			view, err := cartSvc.Evaluate(ctx, cartID, coupon.User{})
			if err != nil {
				return money.Money{}, err
			}
			return view.Subtotal, nil
		},
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Idem: idem}
	orderHandler := &order.Handler{Q: st}
	orderAdmin := &order.AdminHandler{Q: st, Events: bus}

	var redeemBackend ratelimit.Allower
	if limiterStore, err := app.NewLimiterStore(redisClient); err != nil {
		logger.Error().Err(err).Msg("initialise limiter store, using sliding window fallback")
		redeemBackend = ratelimit.SlidingWindow{Client: redisClient, Prefix: "bazaar:ratelimit:"}
	} else {
		redeemBackend = ratelimit.NewUluleLimiter(limiterStore, time.Minute, int(cfg.RedeemRatePerMin))
	}
	redeemLimiter := ratelimit.Handler{
		Limiter: redeemBackend,
		Config: ratelimit.Config{
			Key:    rateKey,
			Window: time.Minute,
			Max:    int(cfg.RedeemRatePerMin),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limit check") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

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
		v.Use(authMW.Authenticate)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.With(authMW.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		v.Route("/carts", func(c chi.Router) {
			c.Post("/", cartHandler.Create)
			c.With(authMW.RequireAuth).Get("/mine", cartHandler.GetActive)
			c.With(authMW.RequireAuth).Post("/merge", cartHandler.Merge)
			c.Route("/{id}", func(one chi.Router) {
				one.Get("/", cartHandler.Get)
				one.Post("/items", cartHandler.AddItem)
				one.Patch("/items/{itemId}", cartHandler.UpdateItem)
				one.Delete("/items/{itemId}", cartHandler.RemoveItem)
				one.With(redeemLimiter.Middleware).Post("/coupon", cartHandler.ApplyCoupon)
				one.Delete("/coupon", cartHandler.RemoveCoupon)
			})
		})

		v.Get("/coupons", couponHandler.Browse)
		v.With(redeemLimiter.Middleware).Post("/coupons/preview", couponHandler.Preview)

		v.Post("/shipping/quote", shippingHandler.Quote)

		v.With(authMW.RequireAuth).Post("/checkout", checkoutHandler.Confirm)

		v.Group(func(authR chi.Router) {
			authR.Use(authMW.RequireAuth)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{orderId}", orderHandler.Get)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireAdmin)
			admin.Get("/coupons", couponHandler.AdminList)
			admin.Post("/coupons", couponHandler.AdminCreate)
			admin.Put("/coupons/{code}", couponHandler.AdminUpdate)
			admin.Patch("/orders/{orderId}/status", orderAdmin.PatchStatus)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-runCtx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// rateKey scopes redemption rate limits per user when authenticated, per
// client IP otherwise.
func rateKey(r *http.Request) string {
	if id, ok := common.UserID(r.Context()); ok && id != "" {
		return "redeem:user:" + id
	}
	return "redeem:ip:" + strings.Split(r.RemoteAddr, ":")[0]
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
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
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
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
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
