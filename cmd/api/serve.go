package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/psicare/manager-api/config"
	"github.com/psicare/manager-api/internal/email"
	authhandler "github.com/psicare/manager-api/internal/handler/auth"
	consultationhandler "github.com/psicare/manager-api/internal/handler/consultation"
	dashboardhandler "github.com/psicare/manager-api/internal/handler/dashboard"
	directoryhandler "github.com/psicare/manager-api/internal/handler/directory"
	documenthandler "github.com/psicare/manager-api/internal/handler/document"
	"github.com/psicare/manager-api/internal/handler/health"
	patienthandler "github.com/psicare/manager-api/internal/handler/patient"
	promhandler "github.com/psicare/manager-api/internal/handler/prometheus"
	"github.com/psicare/manager-api/internal/middleware"
	"github.com/psicare/manager-api/internal/repository/postgres"
	"github.com/psicare/manager-api/internal/router"
	"github.com/psicare/manager-api/internal/service/consultation"
	"github.com/psicare/manager-api/internal/service/dashboard"
	"github.com/psicare/manager-api/internal/service/directory"
	"github.com/psicare/manager-api/internal/service/document"
	"github.com/psicare/manager-api/internal/service/event"
	"github.com/psicare/manager-api/internal/service/patient"
	"github.com/psicare/manager-api/internal/service/session"
	cleanup "github.com/psicare/manager-api/internal/worker"
	"github.com/psicare/manager-api/pkg/auth"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/messaging"
	"github.com/psicare/manager-api/pkg/messaging/redis"
	"github.com/psicare/manager-api/pkg/metrics"
	"github.com/psicare/manager-api/pkg/security"
	"github.com/psicare/manager-api/pkg/worker"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var withOutbox bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log, withOutbox)
		},
	}
	cmd.Flags().BoolVar(&withOutbox, "outbox", true, "relay outbox events from this process")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger, withOutbox bool) error {
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := postgres.NewDB(ctx, cfg.ToDBConfig())
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer db.Close()
	repos := postgres.NewRepositories(db)

	broker, revoker, closeBroker, err := connectBroker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeBroker()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(cfg.Monitoring.Namespace, registry)
	httpMetrics := promhandler.New(cfg.Monitoring.Namespace, registry)

	jwtSvc, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	renderer, err := document.NewRenderer(cfg.Clinic.Letterhead, cfg.Clinic.PublicURL, cfg.Clinic.QRService, location)
	if err != nil {
		return err
	}

	events := event.NewEventService(repos.Outbox, log)
	sessions := session.NewService(
		repos.Identities,
		repos.Profiles,
		security.NewBcryptHasher(bcrypt.DefaultCost),
		jwtSvc,
		revoker,
		broker,
		email.NewService(cfg.SMTP, log),
		log,
		appMetrics,
	)
	patients := patient.NewService(repos.Patients, repos.Medications, repos.Consultations, events, log)
	consultations := consultation.NewService(patients, repos.Consultations, repos.Medications, events, log, appMetrics, location)
	documents := document.NewService(patients, repos.Profiles, repos.Documents, renderer, events, log, appMetrics, cfg.Documents.ValidationCacheTTL)
	directorySvc := directory.NewService(repos.Assistants, repos.Medications, repos.Profiles, events, log)
	dashboardSvc := dashboard.NewService(repos.Patients, repos.Consultations, repos.Profiles, log, location)

	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(
		middleware.NewAuthMiddleware(sessions),
		router.Handlers{
			Health:       health.NewHandler(db),
			Auth:         authhandler.NewHandler(sessions),
			Patient:      patienthandler.NewHandler(patients),
			Consultation: consultationhandler.NewHandler(consultations),
			Document:     documenthandler.NewHandler(documents),
			Directory:    directoryhandler.NewHandler(directorySvc),
			Dashboard:    dashboardhandler.NewHandler(dashboardSvc),
			Metrics:      httpMetrics,
		},
		router.RouterConfig{
			RateLimit:          rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:          cfg.RateLimit.Burst,
			CORSConfig:         cfg.CORS,
			RequestTimeout:     cfg.Server.RequestTimeout,
			MaxBodySize:        cfg.Server.MaxBodyBytes,
			MetricsPath:        cfg.Monitoring.MetricsPath,
			PublicCacheSeconds: cfg.Documents.PublicCacheSeconds,
			QRHost:             cfg.QRHost(),
		},
	)
	r.Setup()

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if withOutbox {
		processor := worker.NewOutboxProcessor(repos.Outbox, broker, cfg.ToWorkerConfig(), log, appMetrics)
		go processor.Start(workerCtx)
		go cleanup.NewOutboxCleanupWorker(repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, log, appMetrics).Start(workerCtx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	log.Info("server exited")
	return nil
}

// connectBroker uses Redis when a URL is configured. Without one, session
// events and revocations stay in process memory, which only suits a single
// instance.
func connectBroker(ctx context.Context, cfg *config.Config, log *logger.Logger) (messaging.Broker, session.Revoker, func(), error) {
	if cfg.Redis.URL == "" {
		log.Warn(nil, "PSICARE_REDIS_URL not set, using in-memory broker and token revocation")
		broker := messaging.NewMemoryBroker()
		return broker, session.NewMemoryRevoker(), func() { _ = broker.Close() }, nil
	}

	client, err := redis.NewClient(ctx, cfg.ToBrokerConfig())
	if err != nil {
		return nil, nil, nil, err
	}
	broker := redis.NewRedisBroker(client, log.Zerolog())
	return broker, session.NewRedisRevoker(client), func() { _ = broker.Close() }, nil
}
