package tasks

import "time"

// Config sizes the worker pool of the ingestion queue.
type Config struct {
	// Workers run ingest, refresh and cleanup tasks concurrently
	Workers int

	// ReleaseAfter hands a claimed task back to the queue when its worker
	// did not finish in time (e.g. a remote fetch that hung)
	ReleaseAfter time.Duration

	// CleanupInterval controls how often finished tasks are purged
	CleanupInterval time.Duration
}

// DefaultConfig returns the queue settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		ReleaseAfter:    15 * time.Minute,
		CleanupInterval: time.Hour,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.ReleaseAfter <= 0 {
		c.ReleaseAfter = def.ReleaseAfter
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	return c
}
