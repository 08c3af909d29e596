package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/downfa11-org/cursus-quickstart/pkg/config"
	"github.com/downfa11-org/cursus-quickstart/pkg/kafka"
	"github.com/downfa11-org/cursus-quickstart/util"
)

func main() {
	// Configuration
	cfg, err := config.LoadBrokerConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	util.Info("🚀 Provisioning topic %s on %v", cfg.Topic, cfg.BrokerAddrs)
	for k, v := range cfg.Settings {
		util.Debug("setting %s=%s", k, v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RequestTimeoutMS)*time.Millisecond)
	defer cancel()

	created, err := kafka.EnsureTopic(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Broker bootstrap failed: %v", err)
	}
	if created {
		util.Info("✅ Topic %s created with %d queues", cfg.Topic, cfg.Partitions)
	} else {
		util.Info("✅ Topic %s ready", cfg.Topic)
	}
}
