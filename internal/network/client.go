// Package network builds the HTTP clients used to reach a pegswap node.
package network

import (
	"net/http"
	"time"
)

// Config holds client-side transport settings.
type Config struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	DelayEnabled bool          `mapstructure:"delay_enabled"`
	MinDelayMs   int           `mapstructure:"min_delay_ms"`
	MaxDelayMs   int           `mapstructure:"max_delay_ms"`
}

// NewHTTPClient creates an HTTP client whose requests are timed through obs
// (which may be nil). With DelayEnabled, every request is held back by a
// random latency to exercise callers against a slow node.
func NewHTTPClient(cfg Config, obs Observer) *http.Client {
	transport := http.DefaultTransport

	if cfg.DelayEnabled {
		transport = NewDelayedRoundTripper(transport, DelayConfig{
			MinDelay: time.Duration(cfg.MinDelayMs) * time.Millisecond,
			MaxDelay: time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		})
	}
	if obs != nil {
		transport = NewInstrumentedRoundTripper(transport, obs)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
