package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/downfa11-org/cursus-quickstart/pkg/bench"
	"github.com/downfa11-org/cursus-quickstart/util"
)

func main() {
	addrs := flag.String("broker-addr", "localhost:9092", "comma-separated broker addresses")
	topicName := flag.String("topic", "SampleTopic", "topic to publish to")
	producers := flag.Int("producers", 4, "number of producers")
	messages := flag.Int("messages", 1000, "messages per producer")
	batch := flag.Int("batch", 100, "records per produce call")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := bench.NewBenchmarkRunner(util.SplitAddrs(*addrs), *topicName, *producers, *messages)
	runner.BatchSize = *batch

	res, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Benchmark failed: %v", err)
	}
	res.Print(runner)
}
