package review

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
	_ "risk-review-system/docs" // Swagger docs
	"risk-review-system/internal/api/rest"
	"risk-review-system/internal/bootstrap"
	"risk-review-system/internal/generator"
	"risk-review-system/internal/grpc"
	"risk-review-system/internal/logger"
	"risk-review-system/internal/services"
)

const serviceName = "risk-review-service"

// StartReviewService запускает REST и gRPC API оценки и очереди проверки
func StartReviewService() {
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

	// Инициализация зависимостей
	deps, err := bootstrap.InitializeDependencies(cfg, serviceName, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	organizations := bootstrap.MonitoredOrganizations(cfg)
	rebuildStats(ctx, deps, organizations, zlog)

	// Периодическая проверка SLA
	monitor := services.NewSLAMonitor(deps.Workflow, organizations, cfg.Scoring.SLAInterval, zlog.Named("sla"))
	go monitor.Run(ctx)

	// Настройка REST API
	gen := generator.NewTransactionGenerator(cfg.Scoring.FeedOrganizationID, cfg.Scoring.FeedCreators)
	handlers := rest.NewHandlers(deps.Evaluator, deps.Workflow, deps.Policies, deps.Users, gen, zlog.Named("rest"))
	router := rest.SetupRouter(handlers, deps.Metrics.Handler(), zlog.Named("http"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("HTTP server starting", zap.Int("port", cfg.Server.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Запуск gRPC сервера в отдельной горутине
	grpcServer := grpc.NewServer(deps.Evaluator, deps.Workflow, zlog.Named("grpc"), cfg.Server.GRPCPort)
	go func() {
		if err := grpcServer.Start(); err != nil {
			zlog.Fatal("Failed to start gRPC server", zap.Error(err))
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
	grpcServer.Stop()

	zlog.Info("Services exited")
}

// rebuildStats восстанавливает статистику очереди после рестарта
func rebuildStats(ctx context.Context, deps *bootstrap.Dependencies, organizations []string, log *zap.Logger) {
	for _, org := range organizations {
		stats, err := deps.Workflow.RebuildStats(ctx, org)
		if err != nil {
			log.Warn("review stats rebuild failed", zap.String("organization_id", org), zap.Error(err))
			continue
		}
		log.Info("review stats rebuilt",
			zap.String("organization_id", org),
			zap.Int("decided", stats.Decided),
		)
	}
}
