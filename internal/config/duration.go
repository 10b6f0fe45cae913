package config

import (
	"fmt"
	"strings"
	"time"
)

// Pacing defaults applied when the portal knobs are omitted.
const (
	DefaultRequestSpacing = 1500 * time.Millisecond
	DefaultRPCTimeout     = 10 * time.Second
)

// RequestSpacing returns the minimum delay between consecutive portal
// dispatches.
func (c *Config) RequestSpacing() (time.Duration, error) {
	return durationOrDefault("portal.seconds_between_requests",
		c.Portal.SecondsBetweenRequests, DefaultRequestSpacing)
}

// RPCTimeout returns the bound on waiting for a remote worker response.
func (c *Config) RPCTimeout() (time.Duration, error) {
	return durationOrDefault("portal.rpc_timeout",
		c.Portal.RPCTimeout, DefaultRPCTimeout)
}

func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func durationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := parseDuration(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
