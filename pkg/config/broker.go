package config

import (
	"flag"
	"strconv"
	"strings"

	"github.com/downfa11-org/cursus-quickstart/util"
)

// BrokerConfig describes the topic the broker must serve. Settings are
// broker-side key/value pairs passed through without interpretation.
type BrokerConfig struct {
	BrokerAddrs       []string          `yaml:"broker_addrs" json:"broker_addrs" env:"CURSUS_BROKER_ADDRS" env-separator:","`
	Topic             string            `yaml:"topic" json:"topic" env:"CURSUS_TOPIC"`
	Partitions        int32             `yaml:"partitions" json:"partitions" env:"CURSUS_PARTITIONS"`
	ReplicationFactor int16             `yaml:"replication_factor" json:"replication_factor" env:"CURSUS_REPLICATION_FACTOR"`
	RequestTimeoutMS  int               `yaml:"request_timeout_ms" json:"request_timeout_ms" env:"CURSUS_REQUEST_TIMEOUT_MS"`
	DeleteIntervalMS  int               `yaml:"delete_message_interval_ms" json:"delete_message_interval_ms" env:"CURSUS_DELETE_MESSAGE_INTERVAL_MS"`
	Settings          map[string]string `yaml:"settings" json:"settings"`
	LogLevel          util.LogLevel     `yaml:"log_level" json:"log_level" env:"CURSUS_LOG_LEVEL"`
}

func LoadBrokerConfig(args []string) (*BrokerConfig, error) {
	cfg := &BrokerConfig{LogLevel: util.LogLevelInfo}

	fs := flag.NewFlagSet("broker", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML/JSON config file")
	fs.Func("broker-addr", "Comma-separated broker addresses (default localhost:9092)", func(val string) error {
		cfg.BrokerAddrs = util.SplitAddrs(val)
		return nil
	})
	fs.StringVar(&cfg.Topic, "topic", "", "Topic to provision (default SampleTopic)")
	partitions := fs.Int("partitions", 0, "Partition count (default 4)")
	fs.Func("set", "Broker setting key=value, repeatable", func(val string) error {
		k, v, ok := strings.Cut(val, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return errInvalidSetting(val)
		}
		if cfg.Settings == nil {
			cfg.Settings = map[string]string{}
		}
		cfg.Settings[strings.TrimSpace(k)] = strings.TrimSpace(v)
		return nil
	})
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	parse := func() error {
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *partitions > 0 {
			cfg.Partitions = int32(*partitions)
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
	if err := parse(); err != nil {
		return nil, err
	}

	cfg.Normalize()
	util.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func (cfg *BrokerConfig) Normalize() {
	if len(cfg.BrokerAddrs) == 0 {
		cfg.BrokerAddrs = []string{"localhost:9092"}
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = "SampleTopic"
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 4
	}
	if cfg.ReplicationFactor == 0 || cfg.ReplicationFactor < -1 {
		cfg.ReplicationFactor = -1 // broker default
	}
	if cfg.RequestTimeoutMS <= 0 {
		cfg.RequestTimeoutMS = 15000
	}
	if cfg.DeleteIntervalMS <= 0 {
		cfg.DeleteIntervalMS = 1000
	}
	if cfg.Settings == nil {
		cfg.Settings = map[string]string{}
	}
}

// TopicConfigs renders the settings for a topic create request. Explicit
// settings override the delete interval.
func (cfg *BrokerConfig) TopicConfigs() map[string]*string {
	out := make(map[string]*string, len(cfg.Settings)+1)
	if cfg.DeleteIntervalMS > 0 {
		v := strconv.Itoa(cfg.DeleteIntervalMS)
		out["file.delete.delay.ms"] = &v
	}
	for k, v := range cfg.Settings {
		v := v
		out[k] = &v
	}
	return out
}
