package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if TASBIH_CONFIG is set
//  3. env (prefix TASBIH_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("TASBIH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: TASBIH_ADDR, TASBIH_DB_PATH, ...
	// Map env keys like TASBIH_WORKER_COUNT -> worker_count (flat keys,
	// underscores preserved to match the koanf tags on the struct).
	envProvider := env.Provider("TASBIH_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "tasbih_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.WebhookQueueSize <= 0:
		return fmt.Errorf("%w: webhook_queue_size must be positive", ErrInvalidConfig)
	case c.BurstThreshold <= 0:
		return fmt.Errorf("%w: burst_threshold must be positive", ErrInvalidConfig)
	}
	return nil
}
