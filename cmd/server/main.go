package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/cache"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/engine"
	deltakerhandler "github.com/navikt/amt-deltaker-sub001/internal/deltaker/handler"
	"github.com/navikt/amt-deltaker-sub001/internal/deltaker/service"
	deltakerstore "github.com/navikt/amt-deltaker-sub001/internal/deltaker/store"
	"github.com/navikt/amt-deltaker-sub001/internal/historikk"
	"github.com/navikt/amt-deltaker-sub001/internal/ingest"
	"github.com/navikt/amt-deltaker-sub001/internal/outbox"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/config"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/database"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/httpserver"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/kafka"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/kafka/consumer"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/kafka/producer"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/logger"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/metrics"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/middleware"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/redis"
	"github.com/navikt/amt-deltaker-sub001/internal/refdata"
	txpkg "github.com/navikt/amt-deltaker-sub001/pkg/platform/tx"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// toggleSet adapts the configured toggle list to the engine interface.
type toggleSet map[string]bool

func (t toggleSet) Enabled(name string) bool { return t[name] }

// producerPublisher adapts the Kafka producer to the outbox worker.
type producerPublisher struct {
	p *producer.Producer
}

func (pp producerPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	return pp.p.Publish(ctx, topic, []byte(key), value)
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers,
		config.TopicDeltaker,
		config.TopicDeltakerliste,
		config.TopicTiltakstype,
		config.TopicNavAnsatt,
		config.TopicNavEnhet,
		config.TopicArrangor,
		config.TopicArrangorMelding,
	); err != nil {
		return err
	}

	kafkaProducer, err := producer.New(cfg.KafkaBrokers, log)
	if err != nil {
		return err
	}
	defer kafkaProducer.Close()

	toggles := make(toggleSet, len(cfg.EnabledToggles))
	for _, name := range cfg.EnabledToggles {
		toggles[name] = true
	}

	deltakere := deltakerstore.NewPostgres(db)
	historikkStore := historikk.NewPostgresStore(db)
	refdataStore := refdata.NewPostgresStore(db)
	outboxStore := outbox.NewPostgresStore(db)

	svc := service.New(
		deltakere,
		historikkStore,
		outbox.NewEnqueuer(outboxStore),
		txpkg.NewSQLRunner(db),
		engine.New(toggles),
		cache.New(redisClient, log),
		log,
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(metrics.New().Middleware)

	router.Get("/internal/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(middleware.NewHMACValidator(cfg.JWTSigningKey), log))
		deltakerhandler.New(svc, log).Register(r)
	})

	server := httpserver.New(cfg.Addr, router)
	worker := outbox.NewWorker(outboxStore, producerPublisher{p: kafkaProducer}, cfg.OutboxInterval, log)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("http server listening", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		return worker.Run(ctx)
	})

	for topic, handler := range ingest.Handlers(refdataStore, svc, log) {
		c, err := consumer.New(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, topic, handler, log)
		if err != nil {
			return err
		}
		group.Go(func() error {
			log.Info("consumer started", slog.String("topic", topic))
			return c.Run(ctx)
		})
	}

	return group.Wait()
}
