package scheduler

import (
	"time"

	"github.com/smallbiznis/tirta/internal/config"
)

// Config controls the maintenance loop.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
	}
}

// ProvideConfig runs the loop only where the SMS workers run.
func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.Enabled = cfg.SMS.Workers
	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
