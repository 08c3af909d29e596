package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/downfa11-org/cursus-quickstart/pkg/config"
	"github.com/downfa11-org/cursus-quickstart/util"
)

type topicAdmin interface {
	ListTopics(ctx context.Context, topics ...string) (kadm.TopicDetails, error)
	CreateTopic(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topic string) (kadm.CreateTopicResponse, error)
}

// EnsureTopic creates the configured topic when it does not exist yet. An
// existing topic is left untouched and reported with created=false.
func EnsureTopic(ctx context.Context, cfg *config.BrokerConfig) (bool, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.BrokerAddrs...),
		kgo.RequestTimeoutOverhead(time.Duration(cfg.RequestTimeoutMS)*time.Millisecond),
		kgo.WithLogger(NewLogger()),
	)
	if err != nil {
		return false, fmt.Errorf("create kafka client: %w", err)
	}
	defer cl.Close()

	return ensureTopic(ctx, kadm.NewClient(cl), cfg)
}

func ensureTopic(ctx context.Context, adm topicAdmin, cfg *config.BrokerConfig) (bool, error) {
	details, err := adm.ListTopics(ctx, cfg.Topic)
	if err != nil {
		return false, fmt.Errorf("list topics: %w", err)
	}
	if details.Has(cfg.Topic) {
		util.Info("topic %s already exists", cfg.Topic)
		return false, nil
	}

	util.Info("Creating topic %s (partitions=%d, replication=%d)", cfg.Topic, cfg.Partitions, cfg.ReplicationFactor)
	resp, err := adm.CreateTopic(ctx, cfg.Partitions, cfg.ReplicationFactor, cfg.TopicConfigs(), cfg.Topic)
	if err != nil {
		return false, fmt.Errorf("create topic %s: %w", cfg.Topic, err)
	}
	if resp.Err != nil {
		return false, fmt.Errorf("create topic %s: %w", cfg.Topic, resp.Err)
	}
	return true, nil
}
