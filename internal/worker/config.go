// Package worker keeps the cache warm by refreshing stations from GIOŚ on a
// schedule or on demand.
package worker

import "time"

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// StationIDs are the stations refreshed by Run.
	StationIDs []int

	// Concurrency is the number of stations refreshed in parallel.
	// Default: 3
	Concurrency int

	// StationTimeout bounds the refresh of one station, including all of
	// its sensors.
	// Default: 30 seconds
	StationTimeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency:    3,
		StationTimeout: 30 * time.Second,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	def := DefaultRefreshConfig()
	if c.Concurrency < 1 {
		c.Concurrency = def.Concurrency
	}
	if c.StationTimeout <= 0 {
		c.StationTimeout = def.StationTimeout
	}
	return c
}
