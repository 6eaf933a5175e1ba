package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/shopflow/core/metrics"
	"github.com/kilianp07/shopflow/infra/monitoring"
	"github.com/kilianp07/shopflow/infra/mqtt"
)

// Config is the root configuration of the shopflow binary.
type Config struct {
	Simulation SimulationConfig        `json:"simulation"`
	Batch      BatchConfig             `json:"batch"`
	MQTT       mqtt.Config             `json:"mqtt"`
	Metrics    metrics.Config          `json:"metrics"`
	Logging    LoggingConfig           `json:"logging"`
	Sentry     monitoring.SentryConfig `json:"sentry"`
}

// Default returns a configuration with every section defaulted.
func Default() Config {
	cfg := Config{Simulation: DefaultSimulation()}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies section defaults.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Batch.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and joins the failures.
func (c Config) Validate() error {
	return errors.Join(
		c.Simulation.Validate(),
		c.Batch.Validate(),
		c.MQTT.Validate(),
		c.Logging.Validate(),
	)
}

// Load reads a YAML or JSON file and applies K_ prefixed environment
// overrides, K_SIMULATION__POLICY=reactive for example. An empty path loads
// defaults and the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
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
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Config{Simulation: DefaultSimulation()}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
