package config

import (
	"flag"
	"strings"
	"time"

	"github.com/downfa11-org/cursus-quickstart/util"
)

// ConsumerConfig configures the consumer process.
type ConsumerConfig struct {
	BrokerAddrs  []string `yaml:"broker_addrs" json:"broker_addrs" env:"CURSUS_BROKER_ADDRS" env-separator:","`
	ConsumerName string   `yaml:"consumer_name" json:"consumer_name" env:"CURSUS_CONSUMER_NAME"`
	GroupID      string   `yaml:"group_id" json:"group_id" env:"CURSUS_GROUP_ID"`
	Topic        string   `yaml:"topic" json:"topic" env:"CURSUS_TOPIC"`

	// Consumer client
	PullRequestTimeoutMS       int           `yaml:"pull_request_timeout_ms" json:"pull_request_timeout_ms" env:"CURSUS_PULL_REQUEST_TIMEOUT_MS"`
	HeartbeatIntervalMS        int           `yaml:"heartbeat_interval_ms" json:"heartbeat_interval_ms" env:"CURSUS_HEARTBEAT_INTERVAL_MS"`
	SessionTimeoutMS           int           `yaml:"session_timeout_ms" json:"session_timeout_ms" env:"CURSUS_SESSION_TIMEOUT_MS"`
	RebalanceTimeoutMS         int           `yaml:"rebalance_timeout_ms" json:"rebalance_timeout_ms" env:"CURSUS_REBALANCE_TIMEOUT_MS"`
	UpdateQueueCountIntervalMS int           `yaml:"update_queue_count_interval_ms" json:"update_queue_count_interval_ms" env:"CURSUS_UPDATE_QUEUE_COUNT_INTERVAL_MS"`
	AutoCommitInterval         time.Duration `yaml:"auto_commit_interval" json:"auto_commit_interval" env:"CURSUS_AUTO_COMMIT_INTERVAL"`

	// Assignment wait
	ExpectedQueueCount int `yaml:"expected_queue_count" json:"expected_queue_count" env:"CURSUS_EXPECTED_QUEUE_COUNT"`
	WaitPollIntervalMS int `yaml:"wait_poll_interval_ms" json:"wait_poll_interval_ms" env:"CURSUS_WAIT_POLL_INTERVAL_MS"`
	WaitTimeoutMS      int `yaml:"wait_timeout_ms" json:"wait_timeout_ms" env:"CURSUS_WAIT_TIMEOUT_MS"`

	// Message handling
	ReportBatchSize int64         `yaml:"report_batch_size" json:"report_batch_size" env:"CURSUS_REPORT_BATCH_SIZE"`
	DedupStore      string        `yaml:"dedup_store" json:"dedup_store" env:"CURSUS_DEDUP_STORE"`
	RedisAddr       string        `yaml:"redis_addr" json:"redis_addr" env:"CURSUS_REDIS_ADDR"`
	PostgresDSN     string        `yaml:"postgres_dsn" json:"postgres_dsn" env:"CURSUS_POSTGRES_DSN"`
	SeenTTL         time.Duration `yaml:"seen_ttl" json:"seen_ttl" env:"CURSUS_SEEN_TTL"`

	EnableExporter bool          `yaml:"enable_exporter" json:"enable_exporter" env:"CURSUS_ENABLE_EXPORTER"`
	ExporterPort   int           `yaml:"exporter_port" json:"exporter_port" env:"CURSUS_EXPORTER_PORT"`
	LogLevel       util.LogLevel `yaml:"log_level" json:"log_level" env:"CURSUS_LOG_LEVEL"`
}

// LoadConsumerConfig resolves flags, the optional config file and the
// environment, in increasing order of precedence for file < env < flags.
func LoadConsumerConfig(args []string) (*ConsumerConfig, error) {
	cfg := &ConsumerConfig{LogLevel: util.LogLevelInfo}

	fs := flag.NewFlagSet("consumer", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	fs.Func("broker-addr", "Comma-separated broker addresses (default localhost:9092)", func(val string) error {
		cfg.BrokerAddrs = util.SplitAddrs(val)
		return nil
	})
	fs.StringVar(&cfg.ConsumerName, "consumer-name", "", "Consumer name (default SampleConsumer)")
	fs.StringVar(&cfg.GroupID, "group-id", "", "Consumer group (default SampleGroup)")
	fs.StringVar(&cfg.Topic, "topic", "", "Topic to consume (default SampleTopic)")
	fs.IntVar(&cfg.ExpectedQueueCount, "expected-queues", 0, "Queues to wait for before steady state (default 4)")
	fs.IntVar(&cfg.WaitTimeoutMS, "wait-timeout-ms", 0, "Give up waiting for the assignment after this many ms (0 waits forever)")
	fs.Int64Var(&cfg.ReportBatchSize, "report-batch-size", 0, "Log throughput every N handled messages (default 1000)")
	fs.StringVar(&cfg.DedupStore, "dedup-store", "", "Seen offset store: memory, redis or postgres")
	fs.BoolVar(&cfg.EnableExporter, "exporter", false, "Enable Prometheus exporter")
	fs.IntVar(&cfg.ExporterPort, "exporter-port", 0, "Exporter port (default 9101)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	parse := func() error {
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *logLevel != "" {
			cfg.LogLevel = util.ParseLogLevel(*logLevel)
		}
		return nil
	}

	if err := parse(); err != nil {
		return nil, err
	}
	if *configPath == "" {
		*configPath = strings.TrimSpace(envOr("CONFIG_PATH", ""))
	}
	if err := readFile(*configPath, cfg); err != nil {
		return nil, err
	}
	if err := readEnv(cfg); err != nil {
		return nil, err
	}
	// explicit flags win over file and env
	if err := parse(); err != nil {
		return nil, err
	}

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func (cfg *ConsumerConfig) Normalize() {
	if len(cfg.BrokerAddrs) == 0 {
		cfg.BrokerAddrs = []string{"localhost:9092"}
	}
	if strings.TrimSpace(cfg.ConsumerName) == "" {
		cfg.ConsumerName = "SampleConsumer"
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		cfg.GroupID = "SampleGroup"
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = "SampleTopic"
	}

	if cfg.PullRequestTimeoutMS <= 0 {
		cfg.PullRequestTimeoutMS = 10 * 1000
	}
	if cfg.SessionTimeoutMS <= 0 {
		cfg.SessionTimeoutMS = 45000
	}
	if cfg.HeartbeatIntervalMS <= 0 {
		cfg.HeartbeatIntervalMS = 1000
	}
	if cfg.HeartbeatIntervalMS >= cfg.SessionTimeoutMS {
		util.Warn("heartbeat_interval_ms (%d) >= session_timeout_ms (%d), adjusting heartbeat to a third of the session timeout",
			cfg.HeartbeatIntervalMS, cfg.SessionTimeoutMS)
		cfg.HeartbeatIntervalMS = cfg.SessionTimeoutMS / 3
	}
	if cfg.RebalanceTimeoutMS <= 0 {
		cfg.RebalanceTimeoutMS = 60000
	}
	if cfg.UpdateQueueCountIntervalMS <= 0 {
		cfg.UpdateQueueCountIntervalMS = 1000
	}
	if cfg.AutoCommitInterval <= 0 {
		cfg.AutoCommitInterval = 5 * time.Second
	}

	if cfg.ExpectedQueueCount < 0 {
		cfg.ExpectedQueueCount = 0
	} else if cfg.ExpectedQueueCount == 0 {
		cfg.ExpectedQueueCount = 4
	}
	if cfg.WaitPollIntervalMS <= 0 {
		cfg.WaitPollIntervalMS = 1000
	}
	if cfg.WaitTimeoutMS < 0 {
		cfg.WaitTimeoutMS = 0
	}

	if cfg.ReportBatchSize <= 0 {
		cfg.ReportBatchSize = 1000
	}
	cfg.DedupStore = strings.ToLower(strings.TrimSpace(cfg.DedupStore))
	switch cfg.DedupStore {
	case "memory", "redis", "postgres":
	case "":
		cfg.DedupStore = "memory"
	default:
		util.Warn("Invalid dedup_store '%s', defaulting to 'memory'", cfg.DedupStore)
		cfg.DedupStore = "memory"
	}
	if cfg.DedupStore == "redis" && strings.TrimSpace(cfg.RedisAddr) == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.SeenTTL < 0 {
		cfg.SeenTTL = 0
	}

	if cfg.ExporterPort <= 0 {
		cfg.ExporterPort = 9101
	}
}

func (cfg *ConsumerConfig) WaitPollInterval() time.Duration {
	return time.Duration(cfg.WaitPollIntervalMS) * time.Millisecond
}

func (cfg *ConsumerConfig) WaitTimeout() time.Duration {
	return time.Duration(cfg.WaitTimeoutMS) * time.Millisecond
}
