package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mobrickeu-cmd/gym-planner/libs/config"
	"github.com/mobrickeu-cmd/gym-planner/libs/db"
	"github.com/mobrickeu-cmd/gym-planner/libs/httpx"
	"github.com/mobrickeu-cmd/gym-planner/libs/kafkax"
	otelx "github.com/mobrickeu-cmd/gym-planner/libs/otel"
	"github.com/mobrickeu-cmd/gym-planner/libs/runtime"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/handlers"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/localstore"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/outbox"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/policy"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/storage"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/store"
)

func main() {
	service := config.String("SERVICE_NAME", "planner-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	local, err := localstore.Open(ctx, config.String("LOCAL_DB_PATH", "planner.db"))
	if err != nil {
		logger.Error("local store open failed", "err", err)
		panic(err)
	}
	defer func() { _ = local.Close() }()

	var (
		reservations  booking.ReservationStore
		ledger        booking.CustomerLedger
		settingsStore policy.Store
		readyChecks   []runtime.ReadyCheck
	)

	// Single-node deployments can run entirely from the SQLite store.
	if config.Bool("PLANNER_LOCAL_ONLY", false) {
		logger.Info("running in local-only mode")
		reservations = local
		ledger = local.Customers()
		settingsStore = local
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "localdb", Check: local.ReadyCheck()})
	} else {
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		if err := storage.EnsureSchema(ctx, pool); err != nil {
			logger.Error("schema migration failed", "err", err)
			panic(err)
		}

		outboxRepo := outbox.NewRepository(pool)
		kafkaBrokers := config.String("KAFKA_BROKERS", "")
		outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   kafkaBrokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go outboxPublisher.Run(ctx)

		reservations = store.NewReservations(storage.NewReservationRepository(pool, outboxRepo), local, logger)
		ledger = store.NewCustomers(storage.NewCustomerRepository(pool), local, logger)
		settingsStore = store.NewSettings(storage.NewSettingsRepository(pool, outboxRepo), local, logger)

		readyChecks = append(readyChecks,
			runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		)
		if kafkaBrokers != "" {
			readyChecks = append(readyChecks,
				runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
			)
		}
	}

	policyManager := policy.NewManager(settingsStore, logger)
	engine := booking.NewEngine(reservations, ledger, policyManager, logger)

	authHandler := handlers.NewAuthHandler(
		ledger,
		jwtSecret,
		config.String("TRAINER_PASSWORD_HASH", ""),
		time.Duration(config.Int("TOKEN_TTL_MINUTES", 720))*time.Minute,
		logger,
	)
	bookingHandler := handlers.NewBookingHandler(engine, logger)
	customersHandler := handlers.NewCustomersHandler(ledger, logger)
	settingsHandler := handlers.NewSettingsHandler(policyManager, logger)

	// Booking endpoints get a fixed-window rate limit; Redis-backed when
	// configured so the window is shared across replicas.
	var rateLimitMW httpx.Middleware
	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		rl := httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service)
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		rl := httpx.NewRateLimiter(rateLimit, time.Minute)
		rateLimitMW = rl.Middleware()
	}

	authMW := handlers.RequireAuth(jwtSecret)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMW(h)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("GET /api/v1/slots", protected(bookingHandler.Slots))
	mux.Handle("POST /api/v1/book", rateLimitMW(protected(bookingHandler.Book)))
	mux.Handle("GET /api/v1/reservations", protected(bookingHandler.Reservations))
	mux.Handle("DELETE /api/v1/reservations/{id}", protected(bookingHandler.DeleteReservation))
	mux.Handle("GET /api/v1/calendar/{year}/{month}", protected(bookingHandler.Calendar))
	mux.Handle("GET /api/v1/customers", protected(customersHandler.List))
	mux.Handle("POST /api/v1/customers", protected(customersHandler.Create))
	mux.Handle("PATCH /api/v1/customers/{id}", protected(customersHandler.Update))
	mux.Handle("DELETE /api/v1/customers/{id}", protected(customersHandler.Delete))
	mux.Handle("GET /api/v1/settings", protected(settingsHandler.Get))
	mux.Handle("PUT /api/v1/settings", protected(settingsHandler.Update))
	mux.Handle("POST /api/v1/settings/reset", protected(settingsHandler.Reset))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "planner")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
