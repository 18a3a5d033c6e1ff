package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	config "github.com/mkorobov/notibox/internal/config/dispatcher"
	"github.com/mkorobov/notibox/internal/dispatch"
	"github.com/mkorobov/notibox/internal/obs"
	"github.com/mkorobov/notibox/internal/obs/retry"
	outboxrelay "github.com/mkorobov/notibox/internal/outbox"
	kafkaRepo "github.com/mkorobov/notibox/internal/repository/kafka"
	pg "github.com/mkorobov/notibox/internal/repository/postgres"
)

func main() {
	var (
		cfgPath = flag.String("config", "config/dispatcher.yaml", "path to config file")
		once    = flag.Bool("once", false, "run a single dispatch cycle and exit")
	)
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting dispatcher",
		zap.Any("kafka_out", cfg.Kafka),
		zap.String("metrics_addr", cfg.Sched.MetricsAddr),
		zap.Bool("once", *once),
	)

	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	producer := kafkaRepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
	publisher := kafkaRepo.NewDispatchEventsKafka(producer)
	defer func() { _ = producer.Close() }()

	ms := obs.BootstrapMetricsServer(cfg.Sched.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// wiring
	uc := dispatch.NewUC(
		l,
		pg.NewTransactor(db, l),
		pg.NewScheduleRepo(db),
		pg.NewNotificationRepo(db),
		pg.NewDirectoryRepo(db),
		pg.NewOutboxRepo(db),
	)
	uc.BatchLimit = cfg.Sched.BatchLimit
	uc.TxTimeout = cfg.Sched.TxTimeout

	relay := outboxrelay.NewRunner(
		l,
		pg.NewOutboxRepo(db),
		outboxrelay.MakeGlobalHandler(publisher, retry.DefaultPublishPolicy(l)),
		cfg.Outbox.Workers,
		cfg.Outbox.BatchSize,
		cfg.Outbox.WaitTime,
		cfg.Outbox.InProgressTTL,
	)
	relay.Start(ctx)

	if *once {
		rep, err := uc.RunCycle(ctx, time.Now().UTC())
		if err != nil {
			l.Fatal("cycle", zap.Error(err))
		}
		l.Info("cycle done",
			zap.Int("processed", rep.Processed),
			zap.Int("succeeded", rep.Succeeded),
			zap.Int("failed", len(rep.Failed)),
		)
		// Give the relay a beat to drain freshly enqueued events.
		time.Sleep(2 * cfg.Outbox.WaitTime)
		return
	}

	runner := dispatch.New(l, uc, &cfg.Sched)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("dispatcher started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
