package platform

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/stm/pkg/core"
)

// Config is the on-disk session configuration (stm.yaml).
type Config struct {
	Adapter    string             `yaml:"adapter"`
	URI        string             `yaml:"uri"`
	Access     string             `yaml:"access"`
	Context    *core.ContextRules `yaml:"context"`
	Versioning bool               `yaml:"versioning"`
	ReadOnly   bool               `yaml:"read_only"`
	DevSafety  *bool              `yaml:"dev_safety"`
	Watch      bool               `yaml:"watch"`
	Debounce   time.Duration      `yaml:"debounce"`
	Redis      RedisConfig        `yaml:"redis"`
}

// RedisConfig holds settings for the redis adapter.
type RedisConfig struct {
	Namespace string `yaml:"namespace"`
	Replicate bool   `yaml:"replicate"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Options converts the config into session options. Zero fields keep the
// defaults.
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	if c.Adapter != "" {
		opts = append(opts, WithAdapter(c.Adapter))
	}
	if c.Access != "" {
		level, err := core.ParseAccessLevel(c.Access)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithAccessLevel(level))
	}
	if c.Context != nil {
		opts = append(opts, WithContext(c.Context))
	}
	if c.Versioning {
		opts = append(opts, WithVersioning(true))
	}
	if c.ReadOnly {
		opts = append(opts, WithReadOnly(true))
	}
	if c.DevSafety != nil {
		opts = append(opts, WithDevSafety(*c.DevSafety))
	}
	if c.Watch {
		opts = append(opts, WithWatch(true))
	}
	if c.Debounce > 0 {
		opts = append(opts, WithDebounce(c.Debounce))
	}
	if c.Redis.Namespace != "" {
		opts = append(opts, WithNamespace(c.Redis.Namespace))
	}
	if c.Redis.Replicate {
		opts = append(opts, WithReplication(true))
	}
	return opts, nil
}
