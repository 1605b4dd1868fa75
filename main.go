package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal-svc/clients"
	"portal-svc/datasync"
	"portal-svc/handlers"
	"portal-svc/middleware"
	"portal-svc/models"
	"portal-svc/monitor"
	"portal-svc/notify"
	"portal-svc/store"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("customer-portal")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	requestTimeout := getDuration("REQUEST_TIMEOUT", 10*time.Second, logger)
	monitorTimeout := getDuration("PAYMENT_MONITOR_TIMEOUT", 5*time.Minute, logger)

	orderClient := clients.NewOrderClient(getEnv("ORDER_SERVICE_URL", "http://localhost:8081"), requestTimeout, logger)
	creditClient := clients.NewCreditClient(getEnv("PAYMENT_SERVICE_URL", "http://localhost:8082/api/v1"), requestTimeout, logger)

	st := store.New(getEnv("CUSTOMER_ID", models.DefaultCustomerID))
	syncer := datasync.New(st, orderClient, creditClient, logger)

	// Notifications go to Kafka when a broker is reachable; the log sink
	// keeps payments flowing when it is not.
	var sink notify.Sink = notify.NewLogSink(logger)
	if getEnv("NOTIFY_SINK", "kafka") == "kafka" {
		producer, err := notify.InitProducer(logger)
		if err != nil {
			logger.Warn("Kafka unavailable, falling back to log notifications", zap.Error(err))
		} else {
			defer producer.Close()
			sink = notify.NewKafkaSink(producer, getEnv("KAFKA_TOPIC", "notification_events"), logger)
		}
	}

	mon := monitor.New(st, orderClient, syncer, sink, monitorTimeout, logger)
	defer mon.Shutdown()

	handler := handlers.NewPortalHandler(st, syncer, mon, orderClient, creditClient, logger)

	// Initial synchronization for the configured customer
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := syncer.Refresh(ctx); err != nil {
			logger.Warn("Initial refresh failed", zap.Error(err))
		}
	}()

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("customer-portal"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	router.GET("/dashboard", handler.Dashboard)
	router.GET("/products", handler.ListProducts)
	router.POST("/refresh", handler.RefreshData)
	router.PUT("/customer", handler.SwitchCustomer)

	router.POST("/orders", handler.CreateOrder)
	router.GET("/orders", handler.ListOrders)
	router.PUT("/orders/:id", handler.UpdateOrder)
	router.POST("/orders/:id/rating", handler.RateOrder)
	router.GET("/orders/statistics", handler.GetStatistics)
	router.POST("/orders/payment", handler.SubmitPayment)
	router.DELETE("/orders/payment/:id", handler.CancelPayment)

	router.GET("/payments", handler.ListPayments)
	router.GET("/payments/:id", handler.GetPaymentStatus)
	router.GET("/credits/balance", handler.GetCreditBalance)
	router.POST("/credits", handler.AddCredit)

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8085"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Customer Portal started on :" + getEnv("PORT", "8085"))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, logger *zap.Logger) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid duration, using default",
			zap.String("key", key),
			zap.String("value", value),
		)
		return defaultValue
	}
	return d
}
