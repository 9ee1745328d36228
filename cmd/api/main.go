package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"example.com/ibblog/internal/api"
	"example.com/ibblog/internal/auth"
	"example.com/ibblog/internal/config"
	"example.com/ibblog/internal/consumer"
	"example.com/ibblog/internal/domain"
	"example.com/ibblog/internal/logging"
	"example.com/ibblog/internal/outbox"
	"example.com/ibblog/internal/persistence/postgres"
	"example.com/ibblog/internal/statscache"
	httptransport "example.com/ibblog/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(logging.SetupParams{
		Level:      cfg.Log.Level,
		FormatJSON: cfg.Log.JSON,
		FileName:   cfg.Log.File,
		ToStdout:   cfg.Log.ToStdout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		URL:             cfg.Postgres.URL,
		MaxConns:        cfg.Postgres.MaxConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	producer := outbox.NewKafkaProducer(cfg.Kafka.Brokers)
	defer func() {
		if err := producer.Close(); err != nil {
			log.WithError(err).Warn("closing kafka producer")
		}
	}()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)
	go dispatcher.Start(ctx)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("calendar timezone: %v", err)
	}
	opts := []domain.Option{
		domain.WithLocation(loc),
		domain.WithEditWindow(cfg.Calendar.EditWindow),
	}
	if cfg.Stats.CacheEnabled() {
		opts = append(opts, domain.WithStatsMemo(statscache.New(cfg.Stats.CacheSizeMB, cfg.Stats.CacheTTL)))
	}
	service := domain.NewService(repo, opts...)

	var consumers sync.WaitGroup
	if cfg.Stats.InvalidationEnabled() {
		handler := consumer.NewStatsInvalidationHandler(service)
		for _, topic := range cfg.Kafka.Topics {
			reader := consumer.NewBroadcastReader(cfg.Kafka.Brokers, cfg.Stats.InvalidationGroup, topic)
			proc := consumer.NewProcessor(reader, handler)

			consumers.Add(1)
			go func() {
				defer consumers.Done()
				defer reader.Close()

				log.WithFields(log.Fields{"topic": topic, "group": reader.Config().GroupID}).Info("stats invalidation consumer started")
				if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).WithField("topic", topic).Error("stats invalidation consumer stopped")
				}
			}()
		}
	}

	mux := http.NewServeMux()
	api.NewHandler(service).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer})
	handler := httptransport.Chain(authMiddleware.Wrap(mux),
		httptransport.PanicRecovery(),
		httptransport.LogRequest(),
		httptransport.CORS(cfg.CORSOrigin),
	)
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), handler)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("ibblog api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	log.Info("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}

	dispatcher.Wait()
	consumers.Wait()
}
