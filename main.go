package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"water-billing/internal/audit"
	"water-billing/internal/auth"
	billingusage "water-billing/internal/billing/adapters/metering"
	billingapp "water-billing/internal/billing/application"
	billingrepo "water-billing/internal/billing/infrastructure/postgres"
	billinginterfaces "water-billing/internal/billing/interfaces"
	billinghttp "water-billing/internal/billing/interfaces/http"
	"water-billing/internal/config"
	"water-billing/internal/eventing"
	eventingrepo "water-billing/internal/eventing/infrastructure/postgres"
	"water-billing/internal/eventing/kafka"
	meteringbilling "water-billing/internal/metering/adapters/billing"
	meteringapp "water-billing/internal/metering/application"
	metering "water-billing/internal/metering/domain"
	meteringrepo "water-billing/internal/metering/infrastructure/postgres"
	meteringinterfaces "water-billing/internal/metering/interfaces"
	meteringhttp "water-billing/internal/metering/interfaces/http"
	"water-billing/internal/observability/metrics"
	"water-billing/internal/txn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config error", zap.Error(err))
	}
	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		logger.Fatal("AUTH_JWT_SECRET is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("timezone error", zap.Error(err))
	}
	threshold, err := cfg.SignificantDelta()
	if err != nil {
		logger.Fatal("significant delta error", zap.Error(err))
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open error", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("db ping error", zap.Error(err))
	}

	metrics.Init(db, logger)
	tx := txn.NewPostgresManager(db)
	auditRepo := audit.NewRepository(db)

	// ---- Eventing ----
	registry := eventing.NewRegistry()
	if err := registry.Register(meteringapp.ReadingsSubmitted{}, billingapp.PaymentGenerated{}); err != nil {
		logger.Fatal("event registry error", zap.Error(err))
	}

	bus := eventing.NewInMemoryBus()
	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, dlqStore, eventing.WithDispatchLogger(logger))
	publisher := eventing.NewPublisher(outboxStore, dispatcher)

	paymentLog := billinginterfaces.NewLoggingPublisher(logger)
	eventing.Subscribe(bus, eventing.EventType(billingapp.PaymentGenerated{}), "billing.payment_log", func(ctx context.Context, event any) error {
		switch generated := event.(type) {
		case billingapp.PaymentGenerated:
			return paymentLog.PublishPaymentGenerated(ctx, generated)
		case *billingapp.PaymentGenerated:
			return paymentLog.PublishPaymentGenerated(ctx, *generated)
		default:
			return errors.New("payment log: unexpected event payload")
		}
	}, processedStore)

	var relay *kafka.Relay
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			ClientID:     cfg.Kafka.ClientID,
			RequiredAcks: cfg.Kafka.RequiredAcks,
			Compression:  cfg.Kafka.Compression,
		})
		if err != nil {
			logger.Fatal("kafka producer error", zap.Error(err))
		}
		relay, err = kafka.NewRelay(producer, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Fatal("kafka relay error", zap.Error(err))
		}
		relay.Attach(bus, processedStore, registry.Types()...)
		defer relay.Close()
		logger.Info("kafka relay enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// ---- Metering and billing ----
	apartmentRepo := meteringrepo.NewApartmentRepository(db)
	readingRepo := meteringrepo.NewReadingRepository(db)
	tariffRepo := billingrepo.NewTariffRepository(db)
	paymentRepo := billingrepo.NewPaymentRepository(db)

	locator, err := meteringapp.NewBaselineLocator(readingRepo, loc, cfg.Billing.BaselineLookbackMonths)
	if err != nil {
		logger.Fatal("baseline locator init error", zap.Error(err))
	}
	usageCalculator, err := meteringapp.NewUsageCalculator(readingRepo, locator)
	if err != nil {
		logger.Fatal("usage calculator init error", zap.Error(err))
	}
	usageReader, err := billingusage.NewUsageReader(usageCalculator)
	if err != nil {
		logger.Fatal("usage reader init error", zap.Error(err))
	}

	tariffService, err := billingapp.NewTariffService(tariffRepo, tx, billingapp.WithTariffLogger(logger))
	if err != nil {
		logger.Fatal("tariff service init error", zap.Error(err))
	}
	generator, err := billingapp.NewPaymentGenerator(paymentRepo, tariffService, usageReader, tx,
		billingapp.GenerationPolicy{GracePeriodMonths: cfg.Billing.GracePeriodMonths, Location: loc},
		billingapp.WithApartmentLister(apartmentRepo),
		billingapp.WithPaymentPublisher(billinginterfaces.NewOutboxPublisher(publisher)),
		billingapp.WithGeneratorLogger(logger),
	)
	if err != nil {
		logger.Fatal("payment generator init error", zap.Error(err))
	}
	paymentService, err := billingapp.NewPaymentService(paymentRepo, tariffService, tx,
		billingapp.WithOverdueAfter(cfg.OverdueAfter()),
		billingapp.WithPaymentLogger(logger),
	)
	if err != nil {
		logger.Fatal("payment service init error", zap.Error(err))
	}

	paymentAdapter, err := meteringbilling.NewPaymentGenerator(generator)
	if err != nil {
		logger.Fatal("payment adapter init error", zap.Error(err))
	}
	submissionService, err := meteringapp.NewSubmissionService(apartmentRepo, readingRepo, tx,
		meteringapp.Policy{
			Window: metering.WindowPolicy{
				OpenDay:  cfg.Billing.WindowOpenDay,
				CloseDay: cfg.Billing.WindowCloseDay,
			},
			Location:                  loc,
			BaselineLookbackMonths:    cfg.Billing.BaselineLookbackMonths,
			SignificantDeltaThreshold: threshold,
		},
		meteringapp.WithPaymentGenerator(paymentAdapter),
		meteringapp.WithReadingsPublisher(meteringinterfaces.NewOutboxPublisher(publisher)),
		meteringapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("submission service init error", zap.Error(err))
	}

	// ---- HTTP ----
	readingHandler, err := meteringhttp.NewHandler(submissionService, auditRepo)
	if err != nil {
		logger.Fatal("reading handler init error", zap.Error(err))
	}
	paymentHandler, err := billinghttp.NewPaymentHandler(generator, paymentService, auditRepo)
	if err != nil {
		logger.Fatal("payment handler init error", zap.Error(err))
	}
	tariffHandler, err := billinghttp.NewTariffHandler(tariffService, auditRepo)
	if err != nil {
		logger.Fatal("tariff handler init error", zap.Error(err))
	}

	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics"},
		nil,
	))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/readings", readingHandler)
	mux.Handle("/api/v1/readings/", readingHandler)
	mux.Handle("/api/v1/payments", paymentHandler)
	mux.Handle("/api/v1/payments/", paymentHandler)
	mux.Handle("/api/v1/tariffs", tariffHandler)
	mux.Handle("/api/v1/tariffs/", tariffHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go dispatcher.Run(ctx, cfg.Outbox.DispatchInterval, cfg.Outbox.BatchSize)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
