package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/downfa11-org/cursus-quickstart/util"
)

type errInvalidSetting string

func (e errInvalidSetting) Error() string {
	return fmt.Sprintf("invalid setting %q, expected key=value", string(e))
}

// readFile decodes a YAML or JSON (by extension) file into cfg. A missing
// file is not an error.
func readFile(path string, cfg interface{}) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			util.Warn("Config file %s not found, using flag defaults", path)
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func readEnv(cfg interface{}) error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
