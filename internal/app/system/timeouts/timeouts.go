// Package timeouts centralizes the per-request deadlines handlers attach to
// store calls, so slow Mongo operations fail the request instead of pinning
// a connection.
package timeouts

import (
	"sync"
	"time"
)

// Defaults, used unless Configure overrides them.
const (
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

var mu sync.RWMutex

var (
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong
)

// Short returns the deadline for single-document reads and writes.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium returns the deadline for list queries and multi-step updates.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// Long returns the deadline for sweeps and other batch work.
func Long() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return long
}

// Config holds override values; zero fields keep the current setting.
type Config struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// Configure applies non-zero overrides.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Medium > 0 {
		medium = cfg.Medium
	}
	if cfg.Long > 0 {
		long = cfg.Long
	}
}

// Reset restores the defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	short = DefaultShort
	medium = DefaultMedium
	long = DefaultLong
}
