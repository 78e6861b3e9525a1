package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"lifeline/internal/directory"
	"lifeline/internal/donation"
	"lifeline/internal/jwttoken"
	"lifeline/internal/match"
	"lifeline/internal/notify"
	"lifeline/internal/platform/config"
	"lifeline/internal/platform/httpserver"
	"lifeline/internal/platform/logger"
	"lifeline/internal/platform/metrics"
	platformredis "lifeline/internal/platform/redis"
	"lifeline/internal/request"
	httptransport "lifeline/internal/transport/http"

	_ "github.com/lib/pq"
)

// main wires dependencies and runs the server plus its background workers.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		requestStore  request.Store
		donationStore donation.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		reqStore := request.NewPostgresStore(db)
		donStore := donation.NewPostgresStore(db)
		if err := reqStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure request schema: %w", err)
		}
		if err := donStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure donation schema: %w", err)
		}
		requestStore, donationStore = reqStore, donStore
		log.Info("using postgres stores")
	} else {
		requestStore = request.NewInMemoryStore()
		donationStore = donation.NewInMemoryStore()
		log.Warn("POSTGRES_DSN unset, using in-memory stores")
	}

	// Notifications: always the in-process hub, plus a Kafka sink when
	// brokers are configured.
	hub := notify.NewHub(16)
	var busOpts []notify.Option
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("kafka sink: %w", err)
		}
		defer sink.Close()
		busOpts = append(busOpts, notify.WithSink(sink))
		log.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}
	bus := notify.NewBus(hub, log, m, busOpts...)

	// Presence: Redis when configured, in-process otherwise.
	var presence directory.Presence
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		presence = directory.NewRedisPresence(redisClient)
		log.Info("redis presence enabled")
	} else {
		presence = directory.NewMemoryPresence(nil)
	}

	dir := directory.New(presence, bus, log)

	engine := match.NewEngine(match.WithRadiusKm(cfg.MatchRadiusKm))
	requestSvc := request.NewService(
		requestStore, donationStore, dir, engine, bus, log, m,
		request.WithDonationLeadTime(cfg.DonationLeadTime),
		request.WithRequestTTL(cfg.RequestTTL),
	)
	donationSvc := donation.NewService(donationStore, log)

	jwtService := jwttoken.NewService(cfg.JWTSigningKey, "lifeline")
	handler := httptransport.NewHandler(
		requestSvc, donationSvc, dir, hub, presence,
		log, m, registry, jwttoken.NewAdapter(jwtService),
	)

	srv := httpserver.New(cfg.Addr, handler.Router())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting lifeline", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return bus.Run(ctx)
	})
	g.Go(func() error {
		return requestSvc.Run(ctx, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
