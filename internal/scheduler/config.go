package scheduler

import (
	"time"
)

// Config controls sweep intervals and batch sizes.
type Config struct {
	RunInterval        time.Duration
	OutboxBatchSize    int
	TrustSweepInterval time.Duration
	HealthSnapInterval time.Duration
	SentinelInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:        time.Minute,
		OutboxBatchSize:    50,
		TrustSweepInterval: 6 * time.Hour,
		HealthSnapInterval: 5 * time.Minute,
		SentinelInterval:   15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.OutboxBatchSize <= 0 {
		c.OutboxBatchSize = defaults.OutboxBatchSize
	}
	if c.TrustSweepInterval <= 0 {
		c.TrustSweepInterval = defaults.TrustSweepInterval
	}
	if c.HealthSnapInterval <= 0 {
		c.HealthSnapInterval = defaults.HealthSnapInterval
	}
	if c.SentinelInterval <= 0 {
		c.SentinelInterval = defaults.SentinelInterval
	}
	return c
}
