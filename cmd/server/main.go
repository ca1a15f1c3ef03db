package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/config"
	"github.com/mamadbah2/agroirrigate/internal/events"
	"github.com/mamadbah2/agroirrigate/internal/irrigation"
	"github.com/mamadbah2/agroirrigate/internal/repository/cache"
	"github.com/mamadbah2/agroirrigate/internal/repository/mongodb"
	"github.com/mamadbah2/agroirrigate/internal/repository/postgres"
	"github.com/mamadbah2/agroirrigate/internal/repository/sheets"
	"github.com/mamadbah2/agroirrigate/internal/scheduler"
	"github.com/mamadbah2/agroirrigate/internal/server/handlers"
	"github.com/mamadbah2/agroirrigate/internal/server/router"
	"github.com/mamadbah2/agroirrigate/internal/service/alerts"
	commandsvc "github.com/mamadbah2/agroirrigate/internal/service/commands"
	"github.com/mamadbah2/agroirrigate/internal/service/consumption"
	"github.com/mamadbah2/agroirrigate/internal/service/notify"
	reportingsvc "github.com/mamadbah2/agroirrigate/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/agroirrigate/internal/service/whatsapp"
	"github.com/mamadbah2/agroirrigate/pkg/clients/sendgrid"
	"github.com/mamadbah2/agroirrigate/pkg/clients/twilio"
	whatsappclient "github.com/mamadbah2/agroirrigate/pkg/clients/whatsapp"
	"github.com/mamadbah2/agroirrigate/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	loc, err := cfg.Location()
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database, baseLogger.Named("repo.postgres"))
	if err != nil {
		baseLogger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	store := postgres.NewStore(db, loc, baseLogger.Named("repo.postgres"))
	if err := store.EnsureSchema(ctx); err != nil {
		baseLogger.Fatal("failed to ensure schema", zap.Error(err))
	}
	health := map[string]handlers.Pinger{"postgres": store}

	alertOpts := alerts.Options{
		Threshold: cfg.Alerts.HumidityThreshold,
		Cooldown:  cfg.Alerts.Cooldown,
	}
	if cfg.Redis.Addr != "" {
		redisClient := cache.NewRedisClient(cfg.Redis)
		defer func() { _ = redisClient.Close() }()
		cooldown := cache.NewCooldown(redisClient, cfg.Alerts.Cooldown)
		alertOpts.Gate = cooldown
		health["redis"] = cooldown
		baseLogger.Info("redis alert gate enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var valveEvents irrigation.EventPublisher
	if cfg.MQTT.BrokerURL != "" {
		mqttClient, err := events.Connect(ctx, cfg.MQTT, baseLogger.Named("events.mqtt"))
		if err != nil {
			baseLogger.Fatal("failed to connect to mqtt broker", zap.Error(err))
		}
		valveEvents = events.NewPublisher(mqttClient, cfg.MQTT.TopicPrefix, baseLogger.Named("events.mqtt"))
		baseLogger.Info("mqtt valve events enabled", zap.String("broker", cfg.MQTT.BrokerURL))
	}

	var (
		reportStore  reportingsvc.ReportStore
		reportFinder handlers.ReportFinder
	)
	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		reportStore, reportFinder = mongoRepo, mongoRepo
		health["mongodb"] = mongoRepo
	}

	var usageMirror consumption.Mirror
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		usageMirror = sheetsRepo
	}

	var (
		channels    []notify.Channel
		whatsClient whatsappclient.Client
	)
	if cfg.SendGrid.Enabled() {
		channels = append(channels, notify.NewEmailChannel(sendgrid.NewClient(cfg.SendGrid)))
	}
	if cfg.Twilio.Enabled() {
		channels = append(channels, notify.NewSMSChannel(twilio.NewClient(cfg.Twilio)))
	}
	if cfg.WhatsApp.Enabled() {
		whatsClient = whatsappclient.NewClient(cfg.WhatsApp)
		channels = append(channels, notify.NewWhatsAppChannel(whatsClient))
	}
	notifier := notify.NewDispatcher(store, baseLogger.Named("svc.notify"), channels...)
	if len(channels) == 0 {
		baseLogger.Warn("no notification channel configured, alerts will not be delivered")
	} else {
		baseLogger.Info("notification channels enabled", zap.Strings("channels", notifier.Channels()))
	}

	usageSvc := consumption.NewService(store, usageMirror, baseLogger.Named("svc.consumption"))

	clock := irrigation.NewClock(loc)
	executor := irrigation.NewExecutor(store, usageSvc, valveEvents, clock, baseLogger.Named("irrigation.executor"))
	matcher := irrigation.NewMatcher(irrigation.MatcherConfig{
		Location:    loc,
		StartWindow: cfg.Matcher.StartWindow,
		EndWindow:   cfg.Matcher.EndWindow,
	}, store, store, executor, notifier, baseLogger.Named("irrigation.matcher"))

	monitor := alerts.NewMonitor(store, notifier, alertOpts, baseLogger.Named("svc.alerts"))

	reportOpts := reportingsvc.Options{Store: reportStore, Location: loc}
	if whatsClient != nil && cfg.Reporting.Recipient != "" {
		reportOpts.Sender = whatsClient
		reportOpts.Recipient = cfg.Reporting.Recipient
	}
	reportingSvc := reportingsvc.NewService(store, reportOpts, baseLogger.Named("svc.reporting"))

	var webhookHandler *handlers.WebhookHandler
	if whatsClient != nil {
		commandDispatcher := commandsvc.NewService(store, executor, reportingSvc, nil, baseLogger.Named("svc.commands"))
		messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, commandDispatcher, baseLogger.Named("svc.whatsapp"))
		webhookHandler = handlers.NewWebhookHandler(messagingSvc, baseLogger.Named("handlers.whatsapp"))
	} else {
		baseLogger.Warn("whatsapp credentials missing, chat commands disabled")
	}

	engine := router.New(router.Handlers{
		Parcels:   handlers.NewParcelHandler(store, executor, baseLogger.Named("handlers.parcels")),
		Readings:  handlers.NewReadingHandler(store, loc, baseLogger.Named("handlers.readings")),
		Schedules: handlers.NewScheduleHandler(store, executor, loc, baseLogger.Named("handlers.schedules")),
		Usage:     handlers.NewUsageHandler(usageSvc, reportingSvc, reportFinder, loc, baseLogger.Named("handlers.usage")),
		Alerts:    handlers.NewAlertHandler(monitor, store, baseLogger.Named("handlers.alerts")),
		Webhook:   webhookHandler,
		Health:    handlers.NewHealthHandler(health, baseLogger.Named("handlers.health")),
	}, baseLogger.Named("router"))

	sched := scheduler.NewScheduler(scheduler.Options{
		Location:       loc,
		PollInterval:   cfg.Matcher.PollInterval,
		CheckInterval:  cfg.Alerts.CheckInterval,
		ReportSchedule: cfg.Reporting.CronSchedule,
		Clock:          clock,
	}, matcher, monitor, reportingSvc, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	for _, run := range executor.Active() {
		executor.Cancel(run.ParcelID)
	}
}
