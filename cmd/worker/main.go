package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	"github.com/jwalitptl/clinic-api/internal/storage"
	"github.com/jwalitptl/clinic-api/internal/worker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	redisBroker "github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level: logger.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	}).WithFields(map[string]interface{}{"worker_id": generateWorkerID()})

	if cfg.Storage.Driver == config.StorageMemory {
		log.Fatal(errors.New("memory storage is private to the api process"), "worker requires postgres storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal(err, "failed to open storage")
	}
	defer stores.Close()

	client, err := stores.RedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	broker := redisBroker.NewRedisBroker(client, redisBroker.Config{
		MaxFailures: cfg.Redis.BreakerFails,
		Timeout:     cfg.Redis.BreakerTimeout,
	}, log)

	appMetrics := metrics.New("clinic_worker")
	metricsHandler, err := prometheus.New("clinic_worker", appMetrics)
	if err != nil {
		log.Fatal(err, "failed to register metrics")
	}

	notifier := notification.NewService(notification.NewMailer(cfg.Mail, log), cfg.Mail.From, appMetrics, log)
	reconciler := worker.NewLedgerReconcileWorker(
		stores.Doctors,
		stores.Appointments,
		stores.Ledger,
		cfg.Worker.ReconcileInterval,
		cfg.Worker.ReconcileRepair,
		appMetrics,
		log,
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Recovery(log.Zerolog()), metricsHandler.Middleware())
	health.NewHandler(stores.Checkers()...).RegisterRoutes(engine)
	engine.GET("/metrics", metricsHandler.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "health server failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Info("notification consumer started", "channel", cfg.Redis.EventsChannel)
		if err := messaging.Consume(ctx, broker, cfg.Redis.EventsChannel, notifier.Handle, log); err != nil {
			log.Error(err, "notification consumer stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := reconciler.Reconcile(ctx); err != nil {
			log.Error(err, "initial ledger reconcile failed")
		}
		reconciler.Start(ctx)
	}()

	<-ctx.Done()
	log.Info("worker shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health server forced to shutdown")
	}
	wg.Wait()
	log.Info("worker exited")
}

func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}
