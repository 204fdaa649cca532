package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinagenda/booking-platform/cmd/mainconfig"
	"github.com/clinagenda/booking-platform/internal/api/router"
	"github.com/clinagenda/booking-platform/internal/appointments"
	"github.com/clinagenda/booking-platform/internal/clinics"
	appconfig "github.com/clinagenda/booking-platform/internal/config"
	"github.com/clinagenda/booking-platform/internal/notify"
	"github.com/clinagenda/booking-platform/internal/observability/metrics"
	"github.com/clinagenda/booking-platform/internal/reminders"
	"github.com/clinagenda/booking-platform/internal/scheduling"
	"github.com/clinagenda/booking-platform/internal/workinghours"
	"github.com/clinagenda/booking-platform/pkg/logging"
)

func main() {
	// Load .env in local development; ignored when absent.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinagenda booking API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	// Stores.
	ledger := appointments.NewStore(pool)
	schedule := workinghours.NewCachedStore(
		workinghours.NewStore(pool), redisClient, cfg.WorkingHoursCacheTTL, logger.Component("workinghours"))
	settingsStore := clinics.NewStore(redisClient, cfg.DefaultGranularityMinutes)
	patientDir := notify.NewPgxDirectory(pool)

	// Notifications. A missing provider disables email without touching the
	// booking path.
	emailSender := buildEmailSender(ctx, cfg, logger)
	var notifier *notify.Service
	var bookingNotifier scheduling.Notifier
	if emailSender != nil {
		notifier = notify.NewService(emailSender, patientDir, settingsStore, logger.Component("notify"))
		bookingNotifier = notifier
	}

	// Booking core.
	availabilityCache := scheduling.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL, logger.Component("availability-cache"))
	bookingService := scheduling.NewService(scheduling.ServiceConfig{
		Ledger:   ledger,
		Schedule: schedule,
		Clock:    scheduling.SystemClock{},
		Cache:    availabilityCache,
		Metrics:  bookingMetrics,
		Notifier: bookingNotifier,
		Logger:   logger.Component("scheduling"),
		LockWait: cfg.BookingLockWait,
	})

	// Reminders.
	if cfg.RemindersEnabled && notifier != nil {
		worker := reminders.NewWorker(reminders.WorkerConfig{
			Store:    reminders.NewStore(pool),
			Sender:   notifier,
			Lead:     cfg.ReminderLead,
			Interval: cfg.ReminderInterval,
			Logger:   logger.Component("reminders"),
		})
		go worker.Run(ctx)
	}

	// HTTP surface.
	dashboard := clinics.NewDashboardHandler(
		clinics.NewDashboardRepository(pool),
		settingsStore,
		prometheus.DefaultGatherer,
		metrics.CommitLatencyMetric,
		logger.Component("dashboard"),
	)
	r := router.New(&router.Config{
		Logger:              logger,
		BookingHandler:      scheduling.NewHandler(bookingService, settingsStore, logger.Component("booking")),
		WorkingHoursHandler: workinghours.NewHandler(schedule, logger.Component("workinghours")),
		SettingsHandler:     clinics.NewHandler(settingsStore, logger.Component("settings")),
		DashboardHandler:    dashboard,
		MetricsHandler:      promhttp.Handler(),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		BookingRate:         5,
		BookingBurst:        10,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger.Component("sendgrid"))
		if sender == nil {
			logger.Warn("sendgrid selected but SENDGRID_API_KEY missing, email disabled")
			return nil
		}
		return sender
	case "ses":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config, email disabled", "error", err)
			return nil
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger.Component("ses"))
	case "stub":
		return notify.NewStubEmailSender(logger.Component("stub-email"))
	default:
		return nil
	}
}
