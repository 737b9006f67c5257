// Command notifications runs the email worker: courtesy notes for outgoing
// citizens and welcome emails, with the one-time password and confirmation
// link, for incoming ones.
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

	"github.com/josuedanielbust/docucol/internal/notification"
	"github.com/josuedanielbust/docucol/internal/platform/config"
	"github.com/josuedanielbust/docucol/internal/platform/httpserver"
	"github.com/josuedanielbust/docucol/internal/platform/kafka"
	"github.com/josuedanielbust/docucol/internal/platform/kafka/consumer"
	"github.com/josuedanielbust/docucol/internal/platform/logger"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	httptransport "github.com/josuedanielbust/docucol/internal/transport/http"
)

func main() {
	log := logger.New("notifications")

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("notifications exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	producer, err := kafka.NewProducerClient(cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	publisher := kafka.NewPublisher(producer, log, m)
	mailer := notification.NewSMTPMailer(cfg.SMTP)
	responder := notification.NewResponder(mailer, publisher, cfg.Operator.APIBaseURL, m, log)

	router := consumer.NewRouter(log, nil)
	responder.Register(router)

	group := cfg.Kafka.ConsumerGroup
	if group == "" {
		group = "notifications"
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
