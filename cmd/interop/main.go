// Command interop runs the transfer coordinator: the HTTP API operators and
// citizens call, plus the consumer loop that advances outbound and inbound
// sagas as the worker services respond.
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

	"golang.org/x/sync/errgroup"

	"github.com/josuedanielbust/docucol/internal/audit"
	"github.com/josuedanielbust/docucol/internal/directory"
	"github.com/josuedanielbust/docucol/internal/operators"
	"github.com/josuedanielbust/docucol/internal/platform/config"
	"github.com/josuedanielbust/docucol/internal/platform/httpserver"
	"github.com/josuedanielbust/docucol/internal/platform/kafka"
	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	"github.com/josuedanielbust/docucol/internal/platform/logger"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	"github.com/josuedanielbust/docucol/internal/platform/postgres"
	"github.com/josuedanielbust/docucol/internal/platform/redis"
	"github.com/josuedanielbust/docucol/internal/ratelimit"
	"github.com/josuedanielbust/docucol/internal/transfer/inbound"
	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/outbound"
	"github.com/josuedanielbust/docucol/internal/transfer/store/session"
	httptransport "github.com/josuedanielbust/docucol/internal/transport/http"
)

// govDirectory glues the raw directory client and its cache into the single
// surface the sagas and handlers depend on. Reads of operator records go
// through the cache; everything else hits the directory directly.
type govDirectory struct {
	*directory.Client
	*directory.Cache
}

func main() {
	log := logger.New("interop")

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("interop exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := session.Migrate(ctx, db); err != nil {
		return err
	}
	outboundSessions := session.NewOutboundPostgres(db)
	incomingSessions := session.NewIncomingPostgres(db)

	auditStore := audit.NewPostgresStore(db)
	if err := auditStore.Migrate(ctx); err != nil {
		return err
	}
	trail := audit.NewTrail(auditStore, 256, log)

	var kv directory.KV = directory.NewMemoryKV()
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		kv = directory.NewRedisKV(redisClient.Client)
	}

	dirClient := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.Timeout, log)
	dir := &govDirectory{
		Client: dirClient,
		Cache:  directory.NewCache(dirClient, kv, cfg.Directory.CacheTTL, log),
	}

	producer, err := kafka.NewProducerClient(cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	if err := kafka.EnsureTopics(ctx, producer, sagaTopics()...); err != nil {
		return err
	}

	publisher := kafka.NewPublisher(producer, log, m)
	gateway := operators.NewGateway(cfg.Directory.Timeout, log)

	outboundSaga := outbound.NewService(
		outboundSessions, publisher, dir, gateway,
		cfg.Directory.ValidateUser, m, log,
	)
	inboundSaga := inbound.NewService(
		incomingSessions, publisher, dir,
		cfg.Operator.ID, cfg.Operator.Name, cfg.Operator.APIBaseURL,
		m, log,
	)

	router := consumer.NewRouter(log, nil)
	outboundSaga.Register(router)
	inboundSaga.Register(router)

	group := cfg.Kafka.ConsumerGroup
	if group == "" {
		group = "interop"
	}
	client, err := kafka.NewConsumerClient(cfg.Kafka, group, router.Topics()...)
	if err != nil {
		return err
	}
	defer client.Close()

	var handler http.Handler = httptransport.NewRouter(log,
		httptransport.NewTransferHandler(outboundSaga, inboundSaga),
		httptransport.NewOperatorHandler(dir),
	)
	if !cfg.RateLimit.Disabled {
		var limits ratelimit.Store = ratelimit.NewMemoryStore()
		if redisClient != nil {
			limits = ratelimit.NewRedisStore(redisClient.Client)
		}
		handler = ratelimit.NewMiddleware(limits, cfg.RateLimit.Requests, cfg.RateLimit.Window, log).Handler(handler)
	}
	srv := httpserver.New(cfg.Addr, handler)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return trail.Run(ctx)
	})

	g.Go(func() error {
		return consumer.New(client, trail.Wrap(router), log, m).Run(ctx)
	})

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client.Close()
		return srv.Shutdown(shutdownCtx)
	})

	// Sessions stuck in a non-terminal state past the retention window are
	// abandoned sagas; the janitor clears them so retries can start fresh.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Sessions.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cutoff := time.Now().Add(-cfg.Sessions.Retention)
				if n, err := outboundSessions.DeleteStale(ctx, cutoff); err != nil {
					log.Warn("outbound janitor sweep failed", "error", err)
				} else if n > 0 {
					log.Info("deleted stale outbound sessions", "count", n)
				}
				if n, err := incomingSessions.DeleteStale(ctx, cutoff); err != nil {
					log.Warn("incoming janitor sweep failed", "error", err)
				} else if n > 0 {
					log.Info("deleted stale incoming sessions", "count", n)
				}
			}
		}
	})

	return g.Wait()
}

// sagaTopics is every saga topic plus its dead-letter twin.
func sagaTopics() []string {
	topics := models.AllTopics()
	for _, topic := range models.AllTopics() {
		topics = append(topics, kafka.DeadLetterTopic(topic))
	}
	return topics
}
