package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/teslamon/teslamon/core/metrics"
	"github.com/teslamon/teslamon/core/poller"
	"github.com/teslamon/teslamon/infra/monitoring"
	"github.com/teslamon/teslamon/infra/mqtt"
	"github.com/teslamon/teslamon/infra/tesla"
)

type Config struct {
	Tesla   tesla.Config      `json:"tesla"`
	Polling poller.Config     `json:"polling"`
	Metrics metrics.Config    `json:"metrics"`
	MQTT    mqtt.Config       `json:"mqtt"`
	Sentry  monitoring.Config `json:"sentry"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("TM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "tm_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Tesla.SetDefaults()
	cfg.Polling.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Tesla.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Polling.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
