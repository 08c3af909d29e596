// Package bench publishes sample messages so a consumer group has work to
// balance, and reports producer throughput.
package bench

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/downfa11-org/cursus-quickstart/pkg/kafka"
	"github.com/downfa11-org/cursus-quickstart/util"
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type BenchmarkRunner struct {
	Addrs               []string
	Topic               string
	NumProducers        int
	MessagesPerProducer int
	BatchSize           int
}

type Result struct {
	Sent     int64
	Failed   int64
	Duration time.Duration
}

func (r Result) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Sent) / r.Duration.Seconds()
}

func NewBenchmarkRunner(addrs []string, topic string, producers, messages int) *BenchmarkRunner {
	return &BenchmarkRunner{
		Addrs:               addrs,
		Topic:               topic,
		NumProducers:        producers,
		MessagesPerProducer: messages,
		BatchSize:           100,
	}
}

// Run publishes NumProducers*MessagesPerProducer messages through one client.
func (b *BenchmarkRunner) Run(ctx context.Context) (Result, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(b.Addrs...),
		kgo.DefaultProduceTopic(b.Topic),
		kgo.WithLogger(kafka.NewLogger()),
	)
	if err != nil {
		return Result{}, fmt.Errorf("create kafka client: %w", err)
	}
	defer cl.Close()

	return b.run(ctx, cl), nil
}

func (b *BenchmarkRunner) run(ctx context.Context, p producer) Result {
	var sent, failed atomic.Int64
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < b.NumProducers; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			b.produce(ctx, p, pid, &sent, &failed)
		}(i)
	}
	wg.Wait()

	return Result{Sent: sent.Load(), Failed: failed.Load(), Duration: time.Since(start)}
}

func (b *BenchmarkRunner) produce(ctx context.Context, p producer, pid int, sent, failed *atomic.Int64) {
	batch := b.BatchSize
	if batch <= 0 {
		batch = 1
	}

	for i := 0; i < b.MessagesPerProducer; i += batch {
		if ctx.Err() != nil {
			return
		}
		n := min(batch, b.MessagesPerProducer-i)
		recs := make([]*kgo.Record, n)
		for j := range recs {
			seq := i + j
			recs[j] = &kgo.Record{
				Topic: b.Topic,
				Key:   []byte(fmt.Sprintf("P%d-%d", pid, seq)),
				Value: []byte(fmt.Sprintf("bench-msg-P%d-Msg%d", pid, seq)),
			}
		}

		for _, res := range p.ProduceSync(ctx, recs...) {
			if res.Err != nil {
				failed.Add(1)
				util.Debug("[P%d] produce failed: %v", pid, res.Err)
				continue
			}
			sent.Add(1)
		}
	}
}

func (r Result) Print(b *BenchmarkRunner) {
	fmt.Printf("\n🧪 BENCHMARK RESULT [produce] 🧪\n")
	fmt.Printf("-------------------------------------\n")
	fmt.Printf(" Topic         : %s\n", b.Topic)
	fmt.Printf(" Producers     : %d\n", b.NumProducers)
	fmt.Printf(" Sent          : %d\n", r.Sent)
	fmt.Printf(" Failed        : %d\n", r.Failed)
	fmt.Printf(" Duration      : %v\n", r.Duration)
	fmt.Printf(" Throughput    : %.2f msg/sec\n", r.Throughput())
	fmt.Printf("-------------------------------------\n")
}
