package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment-service/config"
	"fulfillment-service/internal/api"
	"fulfillment-service/internal/blob"
	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/carrier"
	"fulfillment-service/internal/labels"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"
	"fulfillment-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fulfillment service")

	tp, err := util.InitTracer(cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// Redis only accelerates stock decrements; the database stays authoritative.
	var stockCache service.StockCache
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, stock goes straight to the database", zap.Error(err))
	} else {
		defer redisClient.Close()
		stockCache = redisClient
		log.Println("Redis connected")
	}

	paymentProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment)
	defer paymentProducer.Close()
	notificationProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer notificationProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(paymentProducer, notificationProducer)

	paymentClient := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.SecretKey)
	matcher := &service.TypedMatcher{Fallback: service.NewTextualMatcher(cfg.Business.ShippingSynonyms)}
	reconciler := service.NewReconciler(paymentClient, matcher, service.DefaultProductAliases)

	inventory := service.NewInventoryAdjuster(stockCache, db)
	persister := service.NewOrderPersister(reconciler, inventory, db, eventPublisher)

	carrierClient := carrier.NewClient(cfg.Carrier)
	aggregator := labels.NewAggregator(carrierClient, labels.NewPDFMerger(), cfg.Business.FallbackConcurrency)
	blobs := blob.NewFSStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)

	labelService := service.NewLabelService(db, db, carrierClient, aggregator, blobs, eventPublisher, carrierClient.LabelFormat())
	shipmentService := service.NewShipmentService(db, carrierClient, eventPublisher, cfg.Carrier.HomeDeliveryCarrierID)
	orderService := service.NewOrderService(db, eventPublisher)

	ctx := context.Background()
	if stockCache != nil {
		if err := inventory.SyncInventoryToRedis(ctx); err != nil {
			log.Printf("Failed to sync inventory to Redis: %v", err)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	checkoutConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayment, cfg.Kafka.ConsumerGroup)
	checkoutWorker := worker.NewCheckoutWorker(checkoutConsumer, persister)
	go func() {
		if err := checkoutWorker.Start(workerCtx); err != nil {
			log.Printf("Checkout worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(
		orderService,
		labelService,
		shipmentService,
		eventPublisher,
		api.WebhookConfig{Secret: cfg.Payment.WebhookSecret, Tolerance: cfg.Payment.WebhookTolerance},
		cfg.Auth.JWTSecret,
	)
	handler.AddReadinessCheck("database", func(context.Context) error { return db.Ping() })
	if redisClient != nil {
		handler.AddReadinessCheck("redis", redisClient.Ping)
	}
	handler.ServeFiles(blob.PublicPath, cfg.Storage.Dir)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	checkoutWorker.Stop()

	log.Println("Server exited")
}
