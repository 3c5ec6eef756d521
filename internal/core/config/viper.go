package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// Environment variables use the PRICEINDEX_ prefix with dots replaced by
// underscores (e.g. PRICEINDEX_INDEXER_BATCH_SIZE).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults matching Default()
	v.SetDefault("indexer.batch_size", 1000)
	v.SetDefault("indexer.sample_offsets", []int{-1, 0, 1})
	v.SetDefault("indexer.default_timezone", "UTC")
	v.SetDefault("notifier.redis_addr", "")
	v.SetDefault("notifier.redis_channel", "price.index.changed")

	v.SetEnvPrefix("PRICEINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		BatchSize:       v.GetInt("indexer.batch_size"),
		SampleOffsets:   v.GetIntSlice("indexer.sample_offsets"),
		DefaultTimezone: v.GetString("indexer.default_timezone"),
		RedisAddr:       v.GetString("notifier.redis_addr"),
		RedisChannel:    v.GetString("notifier.redis_channel"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
