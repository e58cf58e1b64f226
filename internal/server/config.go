package server

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the service settings. Zero values are filled in by
// Normalize; Validate rejects settings that would misbehave at runtime.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string

	// ErrorRate is the probability in [0,1] that a /simulate request is
	// answered with a synthetic 500.
	ErrorRate float64

	// MinDelay and MaxDelay bound the simulated work performed by
	// /simulate. MinDelay must not exceed MaxDelay.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultConfig mirrors the service's documented defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8000",
		ErrorRate:  0.10,
		MinDelay:   100 * time.Millisecond,
		MaxDelay:   500 * time.Millisecond,
	}
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.MinDelay == 0 && c.MaxDelay == 0 {
		c.MinDelay = def.MinDelay
		c.MaxDelay = def.MaxDelay
	}
}

// Validate collects every problem with the configuration rather than
// stopping at the first one.
func (c Config) Validate() error {
	var issues []string
	if c.ListenAddr == "" {
		issues = append(issues, "listen address must not be empty")
	}
	if c.ErrorRate < 0 || c.ErrorRate > 1 {
		issues = append(issues, fmt.Sprintf("error rate must be within [0,1], got %g", c.ErrorRate))
	}
	if c.MinDelay < 0 {
		issues = append(issues, "min delay must not be negative")
	}
	if c.MaxDelay < c.MinDelay {
		issues = append(issues, fmt.Sprintf("max delay %s is below min delay %s", c.MaxDelay, c.MinDelay))
	}
	if len(issues) > 0 {
		return fmt.Errorf("invalid server config: %s", strings.Join(issues, "; "))
	}
	return nil
}
