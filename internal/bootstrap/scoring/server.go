package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"risk-review-system/config"
	"risk-review-system/internal/api/rest"
	"risk-review-system/internal/bootstrap"
	"risk-review-system/internal/generator"
	"risk-review-system/internal/kafka"
	"risk-review-system/internal/logger"
)

const serviceName = "scoring-worker"

// StartScoringWorker читает операции учетной книги из Kafka и прогоняет их через оценку
func StartScoringWorker() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	zlog = zlog.With(zap.String("service", serviceName))

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	deps, err := bootstrap.InitializeDependencies(cfg, serviceName, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	// Инициализация Kafka Consumer
	consumer, err := kafka.NewConsumer(cfg, deps.Evaluator.HandleLedgerEvent, zlog.Named("kafka"))
	if err != nil {
		zlog.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start закрывает consumer group после отмены контекста
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		zlog.Info("Starting Kafka consumer...", zap.String("topic", cfg.Kafka.LedgerTopic))
		if err := consumer.Start(ctx); err != nil {
			zlog.Error("Kafka consumer stopped with error", zap.Error(err))
		}
	}()

	switch {
	case cfg.Scoring.FeedInterval <= 0:
	case deps.KafkaProducer == nil:
		zlog.Warn("ledger feed disabled: Kafka producer not available")
	default:
		gen := generator.NewTransactionGenerator(cfg.Scoring.FeedOrganizationID, cfg.Scoring.FeedCreators)
		feeder := NewFeeder(gen, deps.KafkaProducer, cfg.Scoring.FeedInterval, zlog.Named("feeder"))
		go feeder.Run(ctx)
		zlog.Info("ledger feed started", zap.Duration("interval", cfg.Scoring.FeedInterval))
	}

	// health, metrics, events
	router := gin.New()
	router.Use(gin.Recovery(), rest.ZapLogger(zlog.Named("http")))
	rest.SetupCommonEndpoints(router, deps.Metrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.WorkerHTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("HTTP server starting", zap.Int("port", cfg.Server.WorkerHTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down services...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	select {
	case <-consumerDone:
	case <-ctxShutdown.Done():
		zlog.Warn("Kafka consumer did not stop in time")
	}

	zlog.Info("Services exited")
}
