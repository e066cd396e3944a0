package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Mode-dependent deadline defaults. Mock mode is used for load testing and
// deterministic reproduction, so its budgets are tight.
const (
	defaultAnalystTimeoutLive = 10 * time.Second
	defaultTotalTimeoutLive   = 30 * time.Second
	defaultAnalystTimeoutMock = 1 * time.Second
	defaultTotalTimeoutMock   = 5 * time.Second
)

// Load builds the configuration from the environment. Call after any .env
// file has been loaded into the process environment.
func Load() (*Config, error) {
	mode := ReasoningMode(getEnv("REASONING_MODE", string(ReasoningModeMock)))
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	analystDefault := defaultAnalystTimeoutLive
	totalDefault := defaultTotalTimeoutLive
	if mode == ReasoningModeMock {
		analystDefault = defaultAnalystTimeoutMock
		totalDefault = defaultTotalTimeoutMock
	}

	cfg := &Config{
		Reasoning: ReasoningConfig{
			Mode:        mode,
			Model:       getEnv("REASONING_MODEL", "gpt-4o-mini"),
			Temperature: 0.2,
			MaxTokens:   1024,
			Timeout:     10 * time.Second,
			BaseURL:     getEnv("REASONING_BASE_URL", "https://api.openai.com/v1"),
			APIKeyEnv:   getEnv("REASONING_API_KEY_ENV", "OPENAI_API_KEY"),
		},
		Coordinator: CoordinatorConfig{
			AnalystTimeout: analystDefault,
			TotalTimeout:   totalDefault,
		},
		Store: StoreConfig{
			Backing:          getEnv("STORE_BACKING", InProcessBacking),
			RecentLimit:      100,
			SubscriberBuffer: 64,
			Retention:        1000,
		},
		HTTP: HTTPConfig{
			Port:            getEnv("HTTP_PORT", "8080"),
			ShutdownTimeout: 10 * time.Second,
		},
	}

	var err error
	if cfg.Reasoning.Temperature, err = floatEnv("REASONING_TEMPERATURE", cfg.Reasoning.Temperature); err != nil {
		return nil, err
	}
	if cfg.Reasoning.MaxTokens, err = intEnv("REASONING_MAX_TOKENS", cfg.Reasoning.MaxTokens); err != nil {
		return nil, err
	}
	if cfg.Reasoning.Timeout, err = msEnv("REASONING_TIMEOUT_MS", cfg.Reasoning.Timeout); err != nil {
		return nil, err
	}
	if cfg.Coordinator.AnalystTimeout, err = msEnv("COORDINATOR_ANALYST_TIMEOUT_MS", cfg.Coordinator.AnalystTimeout); err != nil {
		return nil, err
	}
	if cfg.Coordinator.TotalTimeout, err = msEnv("COORDINATOR_TOTAL_TIMEOUT_MS", cfg.Coordinator.TotalTimeout); err != nil {
		return nil, err
	}
	if cfg.Store.RecentLimit, err = intEnv("STORE_RECENT_LIMIT", cfg.Store.RecentLimit); err != nil {
		return nil, err
	}
	if cfg.Store.SubscriberBuffer, err = intEnv("STORE_SUBSCRIBER_BUFFER", cfg.Store.SubscriberBuffer); err != nil {
		return nil, err
	}
	if cfg.Store.Retention, err = intEnv("STORE_RETENTION", cfg.Store.Retention); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	return f, nil
}

func msEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s=%q: must be a positive millisecond count", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
