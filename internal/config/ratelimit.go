package config

import (
	"strings"
	"time"
)

// Throttle keys.  KeyByEmailIP counts attempts per submitted email and
// client address, so one caller cannot lock out an account for everyone.
const (
	KeyByEmailIP = "email_ip"
	KeyByIP      = "ip"
)

// RateLimitConfig tunes the throttle on register, login and resend
// verification.  A key may make MaxAttempts attempts at once; attempts
// come back one at a time until the whole allowance is restored after
// Decay.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Decay       time.Duration
	KeyBy       string
	Prefix      string
}

// RefillEvery is how long it takes to earn back a single attempt.
func (c RateLimitConfig) RefillEvery() time.Duration {
	return c.Decay / time.Duration(c.MaxAttempts)
}

// LoadRateLimitConfig reads RATE_LIMIT_ENABLED, RATE_LIMIT_MAX_ATTEMPTS,
// RATE_LIMIT_DECAY, RATE_LIMIT_KEY_BY and RATE_LIMIT_PREFIX.  The defaults
// allow six attempts per minute.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		MaxAttempts: envInt("RATE_LIMIT_MAX_ATTEMPTS", 6),
		Decay:       envDur("RATE_LIMIT_DECAY", time.Minute),
		KeyBy:       strings.ToLower(envStr("RATE_LIMIT_KEY_BY", KeyByEmailIP)),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "throttle"),
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Decay < time.Second {
		cfg.Decay = time.Second
	}
	if cfg.KeyBy != KeyByIP {
		cfg.KeyBy = KeyByEmailIP
	}
	return cfg
}
