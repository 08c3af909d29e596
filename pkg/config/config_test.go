package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/downfa11-org/cursus-quickstart/util"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConsumerConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := LoadConsumerConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.BrokerAddrs)
	assert.Equal(t, "SampleConsumer", cfg.ConsumerName)
	assert.Equal(t, "SampleGroup", cfg.GroupID)
	assert.Equal(t, "SampleTopic", cfg.Topic)
	assert.Equal(t, 10000, cfg.PullRequestTimeoutMS)
	assert.Equal(t, 1000, cfg.HeartbeatIntervalMS)
	assert.Equal(t, 1000, cfg.UpdateQueueCountIntervalMS)
	assert.Equal(t, 4, cfg.ExpectedQueueCount)
	assert.Equal(t, time.Second, cfg.WaitPollInterval())
	assert.Zero(t, cfg.WaitTimeout())
	assert.Equal(t, int64(1000), cfg.ReportBatchSize)
	assert.Equal(t, 5*time.Second, cfg.AutoCommitInterval)
	assert.Equal(t, "memory", cfg.DedupStore)
	assert.Equal(t, 9101, cfg.ExporterPort)
	assert.Equal(t, util.LogLevelInfo, cfg.LogLevel)
}

func TestConsumerConfigNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    ConsumerConfig
		check func(t *testing.T, cfg *ConsumerConfig)
	}{
		{
			name: "heartbeat clamped below session timeout",
			in:   ConsumerConfig{HeartbeatIntervalMS: 9000, SessionTimeoutMS: 6000},
			check: func(t *testing.T, cfg *ConsumerConfig) {
				assert.Equal(t, 2000, cfg.HeartbeatIntervalMS)
			},
		},
		{
			name: "unknown dedup store falls back to memory",
			in:   ConsumerConfig{DedupStore: "etcd"},
			check: func(t *testing.T, cfg *ConsumerConfig) {
				assert.Equal(t, "memory", cfg.DedupStore)
			},
		},
		{
			name: "redis store gets a default address",
			in:   ConsumerConfig{DedupStore: " Redis "},
			check: func(t *testing.T, cfg *ConsumerConfig) {
				assert.Equal(t, "redis", cfg.DedupStore)
				assert.Equal(t, "localhost:6379", cfg.RedisAddr)
			},
		},
		{
			name: "negative wait values are cleared",
			in:   ConsumerConfig{ExpectedQueueCount: -1, WaitTimeoutMS: -5, SeenTTL: -time.Second},
			check: func(t *testing.T, cfg *ConsumerConfig) {
				assert.Zero(t, cfg.ExpectedQueueCount)
				assert.Zero(t, cfg.WaitTimeoutMS)
				assert.Zero(t, cfg.SeenTTL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in
			cfg.Normalize()
			tt.check(t, &cfg)
		})
	}
}

func TestLoadConsumerConfigYAML(t *testing.T) {
	path := writeFile(t, "consumer.yaml", `
broker_addrs: ["b1:9092", "b2:9092"]
group_id: orders
topic: OrderTopic
expected_queue_count: 8
wait_timeout_ms: 30000
auto_commit_interval: 2s
dedup_store: postgres
postgres_dsn: postgres://localhost/cursus
log_level: debug
`)
	t.Cleanup(func() { util.SetLevel(util.LogLevelInfo) })

	cfg, err := LoadConsumerConfig([]string{"-config", path})
	require.NoError(t, err)

	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.BrokerAddrs)
	assert.Equal(t, "orders", cfg.GroupID)
	assert.Equal(t, "OrderTopic", cfg.Topic)
	assert.Equal(t, 8, cfg.ExpectedQueueCount)
	assert.Equal(t, 30*time.Second, cfg.WaitTimeout())
	assert.Equal(t, 2*time.Second, cfg.AutoCommitInterval)
	assert.Equal(t, "postgres", cfg.DedupStore)
	assert.Equal(t, "postgres://localhost/cursus", cfg.PostgresDSN)
	assert.Equal(t, util.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, util.LogLevelDebug, util.Level())
}

func TestLoadConsumerConfigJSON(t *testing.T) {
	path := writeFile(t, "consumer.json", `{"topic": "JSONTopic", "report_batch_size": 50, "log_level": "warn"}`)
	t.Cleanup(func() { util.SetLevel(util.LogLevelInfo) })

	cfg, err := LoadConsumerConfig([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "JSONTopic", cfg.Topic)
	assert.Equal(t, int64(50), cfg.ReportBatchSize)
	assert.Equal(t, util.LogLevelWarn, cfg.LogLevel)
}

func TestLoadConsumerConfigPrecedence(t *testing.T) {
	path := writeFile(t, "consumer.yaml", "topic: FromFile\ngroup_id: FromFile\nexpected_queue_count: 2\n")
	t.Setenv("CURSUS_GROUP_ID", "FromEnv")
	t.Setenv("CURSUS_TOPIC", "FromEnv")
	t.Setenv("CURSUS_BROKER_ADDRS", "e1:9092,e2:9092")

	cfg, err := LoadConsumerConfig([]string{"-config", path, "-topic", "FromFlag"})
	require.NoError(t, err)

	assert.Equal(t, "FromFlag", cfg.Topic)
	assert.Equal(t, "FromEnv", cfg.GroupID)
	assert.Equal(t, 2, cfg.ExpectedQueueCount)
	assert.Equal(t, []string{"e1:9092", "e2:9092"}, cfg.BrokerAddrs)
}

func TestLoadConsumerConfigMissingFile(t *testing.T) {
	cfg, err := LoadConsumerConfig([]string{"-config", filepath.Join(t.TempDir(), "absent.yaml")})
	require.NoError(t, err)
	assert.Equal(t, "SampleTopic", cfg.Topic)
}

func TestLoadConsumerConfigBadFile(t *testing.T) {
	path := writeFile(t, "consumer.yaml", "topic: [unterminated")
	_, err := LoadConsumerConfig([]string{"-config", path})
	assert.Error(t, err)
}

func TestLoadConsumerConfigEnvPath(t *testing.T) {
	path := writeFile(t, "consumer.yaml", "consumer_name: EnvPathConsumer\n")
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConsumerConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "EnvPathConsumer", cfg.ConsumerName)
}

func TestBrokerConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cfg, err := LoadBrokerConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "SampleTopic", cfg.Topic)
	assert.Equal(t, int32(4), cfg.Partitions)
	assert.Equal(t, int16(-1), cfg.ReplicationFactor)
	assert.Equal(t, 1000, cfg.DeleteIntervalMS)
	assert.NotNil(t, cfg.Settings)
}

func TestLoadBrokerConfigSettings(t *testing.T) {
	path := writeFile(t, "broker.yaml", `
topic: Orders
partitions: 8
settings:
  retention.ms: "60000"
`)
	cfg, err := LoadBrokerConfig([]string{"-config", path, "-set", "cleanup.policy=compact", "-partitions", "6"})
	require.NoError(t, err)

	assert.Equal(t, "Orders", cfg.Topic)
	assert.Equal(t, int32(6), cfg.Partitions)
	assert.Equal(t, "60000", cfg.Settings["retention.ms"])
	assert.Equal(t, "compact", cfg.Settings["cleanup.policy"])
}

func TestLoadBrokerConfigInvalidSetting(t *testing.T) {
	_, err := LoadBrokerConfig([]string{"-set", "novalue"})
	assert.Error(t, err)
}

func TestBrokerTopicConfigs(t *testing.T) {
	cfg := &BrokerConfig{
		DeleteIntervalMS: 2500,
		Settings:         map[string]string{"retention.ms": "1000"},
	}
	configs := cfg.TopicConfigs()
	require.Len(t, configs, 2)
	assert.Equal(t, "2500", *configs["file.delete.delay.ms"])
	assert.Equal(t, "1000", *configs["retention.ms"])

	cfg.Settings["file.delete.delay.ms"] = "10"
	assert.Equal(t, "10", *cfg.TopicConfigs()["file.delete.delay.ms"])
}
