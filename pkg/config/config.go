// Package config loads and validates process-level configuration from the
// environment. Defaults depend on the reasoning mode: mock mode tightens
// the pipeline deadlines so deterministic runs stay fast.
package config

import (
	"fmt"
	"time"
)

// ReasoningMode selects the backing of the reasoning provider.
type ReasoningMode string

const (
	ReasoningModeLive ReasoningMode = "live"
	ReasoningModeMock ReasoningMode = "mock"
)

// Validate checks the mode against the known values.
func (m ReasoningMode) Validate() error {
	switch m {
	case ReasoningModeLive, ReasoningModeMock:
		return nil
	}
	return fmt.Errorf("invalid reasoning mode %q: must be %q or %q", m, ReasoningModeLive, ReasoningModeMock)
}

// InProcessBacking is the Store.Backing value selecting the in-process
// store instead of a shared broker URL.
const InProcessBacking = "inprocess"

// ReasoningConfig configures the reasoning provider.
type ReasoningConfig struct {
	Mode        ReasoningMode
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	BaseURL     string
	// APIKeyEnv names the environment variable holding the provider API
	// key. The key itself is never stored in config.
	APIKeyEnv string
}

// CoordinatorConfig bounds the analysis pipeline.
type CoordinatorConfig struct {
	// AnalystTimeout is the per-analyst deadline; expiry substitutes a
	// sentinel finding and never aborts the request.
	AnalystTimeout time.Duration
	// TotalTimeout is the whole-request deadline.
	TotalTimeout time.Duration
}

// StoreConfig configures the shared analysis store.
type StoreConfig struct {
	// Backing is either a broker URL (redis://...) or "inprocess".
	Backing string
	// RecentLimit caps the result size of Recent queries.
	RecentLimit int
	// SubscriberBuffer is the bounded per-subscriber queue depth.
	SubscriberBuffer int
	// Retention caps how many records the ordered index keeps.
	Retention int
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// Config is the umbrella configuration object returned by Load.
type Config struct {
	Reasoning   ReasoningConfig
	Coordinator CoordinatorConfig
	Store       StoreConfig
	HTTP        HTTPConfig
}

// Validate checks cross-field invariants after loading.
func (c *Config) Validate() error {
	if err := c.Reasoning.Mode.Validate(); err != nil {
		return err
	}
	if c.Coordinator.AnalystTimeout <= 0 || c.Coordinator.TotalTimeout <= 0 {
		return fmt.Errorf("coordinator timeouts must be positive")
	}
	if c.Coordinator.AnalystTimeout > c.Coordinator.TotalTimeout {
		return fmt.Errorf("analyst timeout %v exceeds total timeout %v",
			c.Coordinator.AnalystTimeout, c.Coordinator.TotalTimeout)
	}
	if c.Store.Backing == "" {
		return fmt.Errorf("store backing must be a broker URL or %q", InProcessBacking)
	}
	if c.Store.RecentLimit <= 0 || c.Store.SubscriberBuffer <= 0 || c.Store.Retention <= 0 {
		return fmt.Errorf("store limits must be positive")
	}
	return nil
}

// Mock reports whether the reasoning provider runs in mock mode.
func (c *Config) Mock() bool {
	return c.Reasoning.Mode == ReasoningModeMock
}
