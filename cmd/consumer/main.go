package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/downfa11-org/cursus-quickstart/pkg/config"
	"github.com/downfa11-org/cursus-quickstart/pkg/handler"
	"github.com/downfa11-org/cursus-quickstart/pkg/kafka"
	"github.com/downfa11-org/cursus-quickstart/pkg/metrics"
	"github.com/downfa11-org/cursus-quickstart/pkg/offset"
	"github.com/downfa11-org/cursus-quickstart/pkg/rebalance"
	"github.com/downfa11-org/cursus-quickstart/pkg/scheduler"
	"github.com/downfa11-org/cursus-quickstart/util"
)

func main() {
	cfg, err := config.LoadConsumerConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		util.Error("❌ Consumer failed: %v", err)
		os.Exit(1)
	}
	util.Info("✅ Consumer closed gracefully")
}

func run(ctx context.Context, cfg *config.ConsumerConfig) error {
	store, closer, err := offset.Open(ctx, offset.StoreOptions{
		Kind:        offset.StoreKind(cfg.DedupStore),
		RedisAddr:   cfg.RedisAddr,
		PostgresDSN: cfg.PostgresDSN,
		TTL:         cfg.SeenTTL,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	tracker := handler.NewTracker(store, cfg.ReportBatchSize)
	h := handler.NewDedupHandler(tracker)

	sched := scheduler.Default()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sched.Close(closeCtx); err != nil {
			util.Warn("scheduler close: %v", err)
		}
	}()

	util.Info("🚀 Starting consumer %s (group=%s, topic=%s, dedup=%s)", cfg.ConsumerName, cfg.GroupID, cfg.Topic, cfg.DedupStore)
	consumer := kafka.NewConsumer(cfg, sched)
	if ms, ok := store.(*offset.MemoryStore); ok {
		// committed positions are never redelivered to this group
		consumer.OnCommitted(func(topic string, queueID int, next int64) {
			ms.Forget(topic, queueID, next)
		})
	}
	if _, err := consumer.Subscribe(cfg.Topic).Start(h); err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			util.Error("❌ Error closing consumer: %v", err)
		}
		st := tracker.Stats()
		util.Info("📊 Handled %d messages, %d duplicates, %d ack failures", st.Handled, st.Duplicates, st.AckFailures)
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.EnableExporter {
		srv := metrics.StartMetricsServer(cfg.ExporterPort)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		waitCtx := gctx
		if timeout := cfg.WaitTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(gctx, timeout)
			defer cancel()
		}

		util.Info("Start consumer load balance, please wait for a moment.")
		queues, err := rebalance.NewBarrier(sched).WaitForAssignment(waitCtx, consumer, cfg.ExpectedQueueCount, cfg.WaitPollInterval())
		if err != nil {
			if gctx.Err() != nil && !errors.Is(err, rebalance.ErrWaitTimeout) {
				return nil
			}
			return err
		}
		util.Info("✅ Consumer %s owns %d queues, consuming", cfg.ConsumerName, len(queues))
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		util.Info("Received shutdown, stopping consumer %s", cfg.ConsumerName)
		return nil
	})

	return g.Wait()
}
