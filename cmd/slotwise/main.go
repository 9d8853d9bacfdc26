package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/handlers"
	"github.com/slotwise/slotwise/internal/ledger"
	"github.com/slotwise/slotwise/internal/outbox"
	"github.com/slotwise/slotwise/internal/platform/config"
	"github.com/slotwise/slotwise/internal/platform/httpx"
	"github.com/slotwise/slotwise/internal/platform/kafkax"
	"github.com/slotwise/slotwise/internal/platform/otelx"
	"github.com/slotwise/slotwise/internal/platform/postgres"
	"github.com/slotwise/slotwise/internal/platform/runtime"
	"github.com/slotwise/slotwise/internal/schedule"
	"github.com/slotwise/slotwise/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "slotwise")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := postgres.Open(ctx, dbURL)
	if err != nil {
		logger.Error("postgres connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	reservations := storage.NewReservationRepository(pool, outboxRepo)
	schedules := storage.NewScheduleRepository(pool)
	ledgerRepo := storage.NewLedgerRepository(pool, outboxRepo)

	bookingSvc := booking.NewService(
		reservations,
		schedule.NewResolver(schedules, logger),
		logger,
		booking.Config{SlotStep: config.Minutes("SLOT_STEP_MINUTES", booking.DefaultSlotStep)},
	)
	ledgerWriter := ledger.NewWriter(ledgerRepo, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger)
	scheduleHandler := handlers.NewScheduleHandler(schedules, logger)
	paymentsHandler := handlers.NewPaymentsHandler(
		ledgerWriter,
		logger,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		config.Minutes("STRIPE_WEBHOOK_TOLERANCE_MINUTES", 5*time.Minute),
	)

	readyChecks := []runtime.ReadyCheck{
		{Name: "postgres", Check: postgres.ReadyCheck(pool)},
	}
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/reservations", dispatchByMethod(bookingHandler.List, bookingHandler.Create))
	mux.HandleFunc("/api/v1/reservations/reschedule", bookingHandler.Reschedule)
	mux.HandleFunc("/api/v1/reservations/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/reservations/complete", bookingHandler.Complete)
	mux.HandleFunc("/api/v1/providers/working-hours", scheduleHandler.WorkingHours)
	mux.HandleFunc("/api/v1/payments/webhook", paymentsHandler.Webhook)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
	}
	middlewares = append(middlewares, rateLimitMiddleware(logger))
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

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

// rateLimitMiddleware prefers the Redis limiter (multi-instance safe) and
// falls back to the in-process one when Redis is not configured.
func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		return httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "slotwise").Middleware(logger, true)
	}
	return httpx.NewLocalRateLimiter(limit, time.Minute).Middleware()
}

func dispatchByMethod(get, post http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			get(w, r)
		case http.MethodPost:
			post(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
