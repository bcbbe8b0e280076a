package scheduler

import (
	"errors"
	"time"

	"github.com/pagescope/pagescope/internal/config"
)

var ErrInvalidConfig = errors.New("scheduler: missing required dependency")

// Config controls scheduler intervals and the job lock.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 15 * time.Minute,
		JobTimeout:  5 * time.Minute,
		LockTTL:     5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	out := Config{}
	if cfg.Cart.SweepIntervalMinutes > 0 {
		out.RunInterval = time.Duration(cfg.Cart.SweepIntervalMinutes) * time.Minute
	}
	if cfg.RateLimit.LockTTLSecs > 0 {
		out.LockTTL = time.Duration(cfg.RateLimit.LockTTLSecs) * time.Second
	}
	return out.withDefaults()
}
