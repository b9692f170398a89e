package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/psicare/manager-api/config"
	"github.com/psicare/manager-api/internal/handler/health"
	promhandler "github.com/psicare/manager-api/internal/handler/prometheus"
	"github.com/psicare/manager-api/internal/repository/postgres"
	cleanup "github.com/psicare/manager-api/internal/worker"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/messaging/redis"
	"github.com/psicare/manager-api/pkg/metrics"
	"github.com/psicare/manager-api/pkg/worker"
)

func main() {
	var (
		configPath string
		healthAddr string
	)

	root := &cobra.Command{
		Use:           "psicare-worker",
		Short:         "Relay outbox events to the message broker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, logger.New(cfg.ToLoggerConfig()), healthAddr)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yml")
	root.Flags().StringVar(&healthAddr, "health-addr", ":8081", "address for health and metrics endpoints")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("worker failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, healthAddr string) error {
	// A separate process cannot share an in-memory broker.
	if cfg.Redis.URL == "" {
		return errors.New("PSICARE_REDIS_URL is required for the worker")
	}

	db, err := postgres.NewDB(ctx, cfg.ToDBConfig())
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer db.Close()
	repos := postgres.NewRepositories(db)

	client, err := redis.NewClient(ctx, cfg.ToBrokerConfig())
	if err != nil {
		return err
	}
	broker := redis.NewRedisBroker(client, log.Zerolog())
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(cfg.Monitoring.Namespace, registry)

	srv := &http.Server{
		Addr:    healthAddr,
		Handler: healthEngine(health.NewHandler(db), promhandler.New(cfg.Monitoring.Namespace, registry), cfg.Monitoring.MetricsPath),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "health server failed")
		}
	}()

	go cleanup.NewOutboxCleanupWorker(repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, log, m).Start(ctx)

	worker.NewOutboxProcessor(repos.Outbox, broker, cfg.ToWorkerConfig(), log, m).Start(ctx)
	log.Info("outbox worker stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthEngine(h *health.Handler, m *promhandler.Handler, metricsPath string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), m.Middleware())
	h.RegisterRoutes(engine.Group(""))
	engine.GET(metricsPath, m.Handler())
	return engine
}
