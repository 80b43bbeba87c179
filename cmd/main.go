package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facility-uptime-monitor/internal/config"
	domainDevice "facility-uptime-monitor/internal/domain/device"
	"facility-uptime-monitor/internal/events"
	"facility-uptime-monitor/internal/infrastructure/database/postgres"
	"facility-uptime-monitor/internal/infrastructure/memory"
	"facility-uptime-monitor/internal/ingestion"
	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/internal/middleware"
	"facility-uptime-monitor/internal/notification"
	"facility-uptime-monitor/internal/observability/metrics"
	"facility-uptime-monitor/internal/routes"
	"facility-uptime-monitor/internal/tracker"
	"facility-uptime-monitor/internal/uptime"
	usecase "facility-uptime-monitor/internal/usecase/device"
	pkgmqtt "facility-uptime-monitor/pkg/mqtt"

	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

type stores struct {
	devices    domainDevice.StateRepository
	outages    domainDevice.OutageRepository
	emailLog   domainDevice.EmailLogRepository
	uptime     domainDevice.UptimeRepository
	recipients domainDevice.RecipientRepository
	health     func() error
	close      func() error
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("Using in-memory store; state is lost on restart")
		s := memory.NewStore()
		return &stores{
			devices:    s.Devices(),
			outages:    s.Outages(),
			emailLog:   s.EmailLog(),
			uptime:     s.Uptime(),
			recipients: s.Recipients(),
			close:      func() error { return nil },
		}, nil
	}

	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &stores{
		devices:    postgres.NewDeviceRepository(db),
		outages:    postgres.NewOutageRepository(db),
		emailLog:   postgres.NewEmailLogRepository(db),
		uptime:     postgres.NewUptimeRepository(db),
		recipients: postgres.NewRecipientRepository(db),
		health:     db.Health,
		close:      db.Close,
	}, nil
}

func newMailer(cfg *config.Config) (notification.Mailer, error) {
	switch cfg.Mail.Driver {
	case "smtp":
		return notification.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password)
	case "postmark":
		return notification.NewPostmarkMailer(cfg.Mail.PostmarkAPIKey,
			notification.WithPostmarkURL(cfg.Mail.PostmarkURL),
			notification.WithPostmarkClient(&http.Client{Timeout: cfg.Notification.SendTimeout}),
		)
	default:
		return notification.LogMailer{}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	env := cfg.Server.Environment
	if env == "" {
		env = "development"
	}
	if err := logger.Init(env); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("environment", env),
		zap.String("store", cfg.Store.Driver),
		zap.String("mail_driver", cfg.Mail.Driver),
	)

	metrics.Init()

	st, err := openStores(cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}()

	// Notification pipeline.
	mailer, err := newMailer(cfg)
	if err != nil {
		logger.Fatal("Failed to build mailer", zap.Error(err))
	}
	notifyLoc, _ := config.LoadLocation(cfg.Notification.TimeZone)
	tpl, err := notification.NewTemplate("", "", notifyLoc)
	if err != nil {
		logger.Fatal("Failed to parse email template", zap.Error(err))
	}
	notifier, err := notification.NewEmailNotifier(st.recipients, mailer,
		notification.WithTemplate(tpl),
		notification.WithFrom(cfg.Mail.From),
		notification.WithDefaultCampus(cfg.Ingest.DefaultCampus),
	)
	if err != nil {
		logger.Fatal("Failed to build notifier", zap.Error(err))
	}
	dispatcher := notification.NewDispatcher(
		notification.WithWorkers(cfg.Notification.Workers),
		notification.WithQueueSize(cfg.Notification.QueueSize),
		notification.WithTaskTimeout(cfg.Notification.SendTimeout),
	)
	dispatcher.Start()
	gate, err := notification.NewGate(st.emailLog, notifier, dispatcher,
		notification.WithCooldown(cfg.Notification.Cooldown),
		notification.WithDelay(cfg.Notification.Delay),
	)
	if err != nil {
		logger.Fatal("Failed to build notification gate", zap.Error(err))
	}

	// Status change fan-out.
	hub := events.NewHub()
	publishers := []events.Publisher{hub}
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.StatusTopic)
		if err != nil {
			logger.Fatal("Failed to build Kafka publisher", zap.Error(err))
		}
		publishers = append(publishers, kafkaPublisher)
		logger.Info("Publishing status events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.StatusTopic),
		)
	}

	guard := ingestion.NewAPIKeyGuard(cfg.Ingest.APIKeys, cfg.Ingest.DefaultCampus, cfg.Ingest.RequireDeviceName)
	if !guard.Enabled() {
		logger.Warn("INGEST_API_KEYS is empty; status reports are accepted without credentials")
	}
	ingestService, err := ingestion.NewService(tracker.New(st.devices), gate,
		ingestion.WithGuard(guard),
		ingestion.WithPublisher(events.NewMultiPublisher(publishers...)),
	)
	if err != nil {
		logger.Fatal("Failed to build ingestion service", zap.Error(err))
	}

	uptimeLoc, _ := config.LoadLocation(cfg.Uptime.TimeZone)
	aggregator := uptime.NewAggregator(st.devices, st.outages, st.uptime, uptime.WithLocation(uptimeLoc))

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		aggregator.StartScheduler(bgCtx, cfg.Uptime.Interval)
	}()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst)
	go limiter.Run(bgCtx)

	// MQTT is optional.
	processor := ingestion.NewProcessor(ingestService, cfg.Ingest.Workers, cfg.Ingest.QueueSize)
	var mqttClient *ingestion.MQTTIngestionClient
	if cfg.MQTT.Broker != "" {
		processor.Start()
		mqttClient, err = ingestion.NewMQTTIngestionClient(&ingestion.MQTTIngestionConfig{
			ClientConfig: pkgmqtt.DefaultConfig(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password),
			StatusTopic:  cfg.MQTT.StatusTopic,
			TriggerTopic: cfg.MQTT.TriggerTopic,
			QoS:          byte(cfg.MQTT.QoS),
		}, processor, aggregator)
		if err != nil {
			logger.Fatal("Failed to build MQTT client", zap.Error(err))
		}
		if err := mqttClient.Start(); err != nil {
			logger.Fatal("Failed to start MQTT ingestion", zap.Error(err))
		}
	}

	deps := routes.Dependencies{
		Ingestion:            ingestService,
		Devices:              usecase.NewService(st.devices, st.outages, st.uptime, st.recipients),
		Aggregator:           aggregator,
		Hub:                  hub,
		Limiter:              limiter,
		Health:               st.health,
		PendingNotifications: dispatcher.Pending,
	}
	if mqttClient != nil {
		deps.MQTTConnected = mqttClient.Connected
	}
	router := routes.SetupRoutes(cfg, deps)

	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}
	addr := net.JoinHostPort(host, port)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if mqttClient != nil {
		mqttClient.Stop()
		processor.Stop()
	}

	hub.Close()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", zap.Error(err))
	}

	bgCancel()
	<-schedulerDone
	aggregator.Wait()

	// Pending alerts fire now instead of being dropped.
	if err := dispatcher.Stop(ctx); err != nil {
		logger.Error("Failed to flush notifications", zap.Error(err))
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("Failed to close Kafka publisher", zap.Error(err))
		}
	}

	logger.Info("Server exited properly")
}
