// Command users runs the citizen identity worker. It answers the transfer
// sagas' user lookups, creates accounts for incoming citizens, and purges
// accounts when an incoming transfer is rejected.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josuedanielbust/docucol/internal/identity"
	"github.com/josuedanielbust/docucol/internal/identity/store"
	"github.com/josuedanielbust/docucol/internal/platform/config"
	"github.com/josuedanielbust/docucol/internal/platform/httpserver"
	"github.com/josuedanielbust/docucol/internal/platform/kafka"
	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	"github.com/josuedanielbust/docucol/internal/platform/logger"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	"github.com/josuedanielbust/docucol/internal/platform/postgres"
	httptransport "github.com/josuedanielbust/docucol/internal/transport/http"
)

func main() {
	log := logger.New("users")

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("users exited", "error", err)
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

	users := store.NewPostgresStore(db)
	if err := users.Migrate(ctx); err != nil {
		return err
	}

	producer, err := kafka.NewProducerClient(cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	publisher := kafka.NewPublisher(producer, log, m)
	responder := identity.NewResponder(users, publisher, cfg.Operator.ID, rand.Reader, log)

	router := consumer.NewRouter(log, nil)
	responder.Register(router)

	group := cfg.Kafka.ConsumerGroup
	if group == "" {
		group = "users"
	}
	client, err := kafka.NewConsumerClient(cfg.Kafka, group, router.Topics()...)
	if err != nil {
		return err
	}
	defer client.Close()

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(log))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.New(client, router, log, m).Run(ctx)
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

	return g.Wait()
}
