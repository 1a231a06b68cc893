package kvcache

import (
	"fmt"
	"time"

	"github.com/FabioDiCeglie/kvcache/eviction"
)

type Config struct {
	// MaxEntries is the entry-count budget. Zero means unbounded.
	MaxEntries int

	// EvictionPolicy decides victims when a write would exceed MaxEntries.
	EvictionPolicy eviction.Kind

	// SweepInterval is how often the background sweep runs. Zero disables
	// the sweep; expired entries are then reclaimed lazily only.
	SweepInterval time.Duration

	// SweepSampleSize bounds how many volatile keys one sweep batch checks.
	SweepSampleSize int

	// LFUDecayInterval is how often access frequencies are halved. Zero
	// disables decay.
	LFUDecayInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxEntries:       0,
		EvictionPolicy:   eviction.None,
		SweepInterval:    time.Second,
		SweepSampleSize:  20,
		LFUDecayInterval: time.Minute,
	}
}

func (c Config) Validate() error {
	if c.MaxEntries < 0 {
		return fmt.Errorf("MaxEntries cannot be negative")
	}
	if c.EvictionPolicy == "" {
		return fmt.Errorf("EvictionPolicy is required")
	}
	if !c.EvictionPolicy.Valid() {
		return fmt.Errorf("unknown eviction policy %q", c.EvictionPolicy)
	}
	if c.EvictionPolicy != eviction.None && c.MaxEntries <= 0 {
		return fmt.Errorf("MaxEntries must be set when eviction policy is %q", c.EvictionPolicy)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("SweepInterval cannot be negative")
	}
	if c.SweepInterval > 0 && c.SweepSampleSize <= 0 {
		return fmt.Errorf("SweepSampleSize must be positive when the sweep is enabled")
	}
	if c.LFUDecayInterval < 0 {
		return fmt.Errorf("LFUDecayInterval cannot be negative")
	}
	return nil
}
