package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/insider-one/notify-dispatch/docs"
	"github.com/insider-one/notify-dispatch/internal/channel"
	"github.com/insider-one/notify-dispatch/internal/config"
	"github.com/insider-one/notify-dispatch/internal/dispatch"
	"github.com/insider-one/notify-dispatch/internal/domain"
	"github.com/insider-one/notify-dispatch/internal/handler"
	"github.com/insider-one/notify-dispatch/internal/middleware"
	"github.com/insider-one/notify-dispatch/internal/ratelimit"
	"github.com/insider-one/notify-dispatch/internal/retry"
	"github.com/insider-one/notify-dispatch/internal/status"
	"github.com/insider-one/notify-dispatch/internal/store"
	"github.com/insider-one/notify-dispatch/internal/webhook"
)

// @title Notification Dispatch Service API
// @version 1.0
// @description Multi-channel notification dispatch with retry, fallback, and delivery webhooks

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.App.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting notify-dispatch", slog.String("env", cfg.App.Env), slog.String("port", cfg.Server.Port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to postgres")

	redisClient, err := ratelimit.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	notificationRepo := store.NewNotificationRepository(db)
	clientRepo := store.NewApiClientRepository(db)
	channelConfigRepo := store.NewChannelConfigRepository(db)
	templateRepo := store.NewTemplateRepository(db)
	auditRepo := store.NewAuditRepository(db, logger)

	limiter := ratelimit.NewLimiter(redisClient, clientRepo, cfg.Core.DefaultRateLimitPerMin)
	ingressQueue := retry.NewIngressQueue(redisClient.GetClient())

	router := channel.NewRouter(channelConfigRepo, logger)
	router.Register(channel.NewEmailAdapter(cfg.SMTP, true, logger))
	router.Register(channel.NewSMSAdapter(cfg.SMS, true, cfg.Core.OutboundCallTimeout, logger))
	router.Register(channel.NewWhatsAppAdapter(false, logger))

	if cfg.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Error("failed to initialize telegram bot, telegram channel disabled", slog.String("error", err.Error()))
			router.Register(channel.NewTelegramAdapter(nil, false, logger))
		} else {
			router.Register(channel.NewTelegramAdapter(bot, true, logger))
		}
	} else {
		router.Register(channel.NewTelegramAdapter(nil, false, logger))
	}

	webhookNotifier := webhook.New(cfg.Core.WebhookSecret, cfg.Core.WebhookTimeout, logger)

	statusHub := status.NewHub(logger)
	go statusHub.Run()

	broadcast := func(n *domain.Notification) {
		statusHub.Broadcast(n)
	}

	dispatcher := dispatch.New(
		notificationRepo,
		clientRepo,
		templateRepo,
		auditRepo,
		router,
		webhookNotifier,
		ingressQueue,
		broadcast,
		logger,
	)

	pool := retry.NewPool(cfg.Core.WorkerCount, cfg.Core.WorkerCount*4, logger)
	pool.Start(ctx)

	scheduler := retry.NewScheduler(
		notificationRepo,
		pool,
		dispatcher.Deliver,
		webhookNotifier,
		cfg.Core.RetryPollInterval,
		cfg.Core.RetryBatchLimit,
		cfg.Core.LeaseTimeout,
		logger,
	)
	go scheduler.Run(ctx)

	ingressConsumer := retry.NewIngressConsumer(ingressQueue, notificationRepo, pool, dispatcher.Deliver, logger)
	go ingressConsumer.Run(ctx)

	go runDailyCapReset(ctx, channelConfigRepo, logger)

	notificationHandler := handler.NewNotificationHandler(dispatcher, notificationRepo)

	healthHandler := handler.NewHealthHandler()
	healthHandler.AddChecker("postgres", db)
	healthHandler.AddChecker("redis", redisClient)

	metrics := handler.NewMetrics()
	metricsHandler := handler.NewMetricsHandler(metrics, ingressQueue)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Compress(5))

	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Handle("/metrics", metricsHandler.Handler())
	r.Get("/metrics/realtime", metricsHandler.RealtimeMetrics)
	r.Get("/ws", status.Handler(statusHub))

	docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			statuses := router.HealthCheckAll(req.Context())
			handler.JSON(w, http.StatusOK, statuses)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(clientRepo, limiter, logger))
			notificationHandler.RegisterRoutes(r)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	pool.Stop(cfg.Server.ShutdownTimeout)
	cancel()

	logger.Info("server stopped")
}

// runDailyCapReset zeroes every channel's daily_sent_count at the next UTC
// midnight and every 24h after — a supplemented maintenance task, not part
// of the core delivery path [SPEC_FULL §4].
func runDailyCapReset(ctx context.Context, channels domain.ChannelConfigRepository, logger *slog.Logger) {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)

	timer := time.NewTimer(nextMidnight.Sub(now))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := channels.ResetDailyCounters(ctx); err != nil {
		logger.Error("failed to reset daily channel counters", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := channels.ResetDailyCounters(ctx); err != nil {
				logger.Error("failed to reset daily channel counters", slog.String("error", err.Error()))
			}
		}
	}
}
