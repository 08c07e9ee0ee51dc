package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	adminHandler "github.com/jwalitptl/clinic-api/internal/handler/admin"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	doctorHandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/router"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/booking"
	"github.com/jwalitptl/clinic-api/internal/service/dashboard"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/internal/service/notification"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/internal/storage"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	redisBroker "github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
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
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal(err, "failed to open storage")
	}
	defer stores.Close()

	appMetrics := metrics.New("clinic")
	metricsHandler, err := prometheus.New("clinic", appMetrics)
	if err != nil {
		log.Fatal(err, "failed to register metrics")
	}

	// Events go through Redis when records are shared with the worker.
	// With in-memory storage they are consumed in-process instead.
	var broker messaging.Broker
	if cfg.Storage.Driver == config.StorageMemory {
		mem := messaging.NewMemoryBroker()
		defer mem.Close()
		broker = mem

		notifier := notification.NewService(notification.NewMailer(cfg.Mail, log), cfg.Mail.From, appMetrics, log)
		go func() {
			if err := messaging.Consume(ctx, broker, cfg.Redis.EventsChannel, notifier.Handle, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(err, "in-process notification consumer stopped")
			}
		}()
	} else {
		client, err := stores.RedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		broker = redisBroker.NewRedisBroker(client, redisBroker.Config{
			MaxFailures: cfg.Redis.BreakerFails,
			Timeout:     cfg.Redis.BreakerTimeout,
		}, log)
	}
	events := event.NewEventService(broker, cfg.Redis.EventsChannel, appMetrics, log)

	hasher := security.NewBcryptHasher(cfg.Auth.BcryptCost)

	patientSvc := patientService.NewService(stores.Patients, hasher, log)
	doctorSvc := doctorService.NewService(stores.Doctors, stores.Ledger, hasher, cfg.Doctors.CacheTTL, appMetrics, log)
	bookingSvc := booking.NewService(stores.Doctors, stores.Patients, stores.Appointments, stores.Ledger, events, appMetrics, log)
	dashboardSvc := dashboard.NewService(stores.Doctors, stores.Patients, stores.Appointments)
	authSvc, err := authService.NewService(cfg.Auth, stores.Patients, hasher, log)
	if err != nil {
		log.Fatal(err, "failed to initialise auth")
	}

	routerConfig := router.RouterConfig{
		Mode:         cfg.Server.Mode,
		CORSConfig:   middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		router.Handlers{
			Auth:        authHandler.NewHandler(authSvc, patientSvc),
			Doctor:      doctorHandler.NewHandler(doctorSvc),
			Patient:     patientHandler.NewHandler(patientSvc),
			Appointment: appointmentHandler.NewHandler(bookingSvc),
			Admin:       adminHandler.NewHandler(doctorSvc, bookingSvc, dashboardSvc),
			Health:      health.NewHandler(stores.Checkers()...),
			Metrics:     metricsHandler,
		},
		log,
		routerConfig,
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited")
}
