package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hendraw/partshub/internal/auth"
	"github.com/hendraw/partshub/internal/catalog"
	"github.com/hendraw/partshub/internal/checkout"
	"github.com/hendraw/partshub/internal/config"
	"github.com/hendraw/partshub/internal/events"
	"github.com/hendraw/partshub/internal/httpx"
	kafkax "github.com/hendraw/partshub/internal/kafka"
	"github.com/hendraw/partshub/internal/logging"
	"github.com/hendraw/partshub/internal/metrics"
	"github.com/hendraw/partshub/internal/orders"
	"github.com/hendraw/partshub/internal/payments"
	"github.com/hendraw/partshub/internal/postgres"
	"github.com/hendraw/partshub/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	producers := map[string]*kafkax.Producer{
		events.TopicOrderCreated:     kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderCreated, 1024),
		events.TopicOrderCompleted:   kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderCompleted, 1024),
		events.TopicPaymentCompleted: kafkax.NewProducer(cfg.KafkaBrokers, events.TopicPaymentCompleted, 1024),
	}
	for _, p := range producers {
		p.Start(ctx)
	}
	emitter := &events.KafkaEmitter{Service: cfg.ServiceName, Producers: producers}

	// Checkout gateway
	gateway := checkout.NewStripeClient(
		cfg.StripeAPIKey, cfg.StripeWebhookSecret, cfg.StripeAPIBase,
		cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL,
	)

	// Stores and workflows
	orderStore := &orders.Store{DB: db}
	placement := orders.NewPlacement(orderStore, emitter, log)
	paymentStore := &payments.PgStore{DB: db}
	reconciliation := payments.NewWorkflow(paymentStore, orderStore, gateway, "usd",
		payments.WithEmitter(emitter),
		payments.WithLogger(log),
		payments.WithDeduper(&payments.RedisDeduper{Client: rdb}),
	)
	authService := auth.NewService(&auth.PgStore{DB: db}, cfg.TokenTTL)

	// Router
	m := metrics.NewHTTP("partshub")
	router := httpx.NewRouter(m)

	authHandler := &httpx.AuthHandler{Service: authService, Log: log}
	catalogHandler := &httpx.CatalogHandler{Store: &catalog.Store{DB: db}, Log: log}
	ordersHandler := &httpx.OrdersHandler{Placement: placement, Store: orderStore, Redis: rdb, Log: log}
	paymentsHandler := &httpx.PaymentsHandler{Workflow: reconciliation, Log: log}

	authHandler.RegisterPublic(router)
	catalogHandler.RegisterExport(router)
	paymentsHandler.RegisterWebhook(router)
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authService))
		authHandler.RegisterProtected(r)
		catalogHandler.Register(r)
		ordersHandler.Register(r)
		paymentsHandler.Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)

	for _, p := range producers {
		p.Close()
	}
	cancel()
	for _, p := range producers {
		p.WaitClosed()
	}
}
