// Package config provides configuration management for the priceindex job.
package config

import (
	"fmt"
	"time"
)

// Config holds the indexer's tunables.
//
// SampleOffsets is the sampled-date set, in days relative to the reindex
// instant. The default {-1, 0, 1} assumes a daily re-run schedule with slack
// for timezone skew at day boundaries; a different refresh cadence changes
// this parameter and nothing else.
type Config struct {
	BatchSize       int
	SampleOffsets   []int
	DefaultTimezone string
	RedisAddr       string
	RedisChannel    string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		BatchSize:       1000,
		SampleOffsets:   []int{-1, 0, 1},
		DefaultTimezone: "UTC",
		RedisAddr:       "",
		RedisChannel:    "price.index.changed",
	}
}

// Validate checks batch size, offsets, and timezone loadability.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if len(c.SampleOffsets) == 0 {
		return fmt.Errorf("sample_offsets must not be empty")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid default_timezone %q: %w", c.DefaultTimezone, err)
	}
	if c.RedisAddr != "" && c.RedisChannel == "" {
		return fmt.Errorf("redis_channel required when redis_addr is set")
	}
	return nil
}
