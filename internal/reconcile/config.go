package reconcile

import (
	"fmt"
	"time"
)

// RejectPolicy decides what happens to an action the remote rejects.
type RejectPolicy string

const (
	// RejectSkip marks the rejected action synced and records a
	// SYNC_REJECTED activity entry, so the queue keeps moving.
	RejectSkip RejectPolicy = "skip"

	// RejectBlock leaves the rejected action pending. Every later cycle
	// halts at it again until it is resolved.
	RejectBlock RejectPolicy = "block"
)

// Config bounds the reconciler's timing and retry behavior.
type Config struct {
	// Interval between periodic sync triggers.
	Interval time.Duration

	// BackoffMin is the delay after the first failed attempt.
	BackoffMin time.Duration

	// BackoffMax caps the delay between attempts.
	BackoffMax time.Duration

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64

	// Jitter is the fraction of the delay randomized in each direction.
	Jitter float64

	// MaxAttempts bounds the cycles run by one SyncWithRetry call.
	MaxAttempts int

	// ActionTimeout bounds each remote call.
	ActionTimeout time.Duration

	// RejectPolicy handles REMOTE_REJECTED actions.
	RejectPolicy RejectPolicy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:      30 * time.Second,
		BackoffMin:    time.Second,
		BackoffMax:    time.Minute,
		Multiplier:    2.0,
		Jitter:        0.2,
		MaxAttempts:   5,
		ActionTimeout: 15 * time.Second,
		RejectPolicy:  RejectSkip,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	case c.BackoffMin <= 0:
		return fmt.Errorf("backoff min must be positive, got %s", c.BackoffMin)
	case c.BackoffMax < c.BackoffMin:
		return fmt.Errorf("backoff max %s is below backoff min %s", c.BackoffMax, c.BackoffMin)
	case c.Multiplier < 1:
		return fmt.Errorf("multiplier must be at least 1, got %g", c.Multiplier)
	case c.Jitter < 0 || c.Jitter > 1:
		return fmt.Errorf("jitter must be within [0, 1], got %g", c.Jitter)
	case c.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	case c.ActionTimeout <= 0:
		return fmt.Errorf("action timeout must be positive, got %s", c.ActionTimeout)
	case c.RejectPolicy != RejectSkip && c.RejectPolicy != RejectBlock:
		return fmt.Errorf("reject policy must be %q or %q, got %q", RejectSkip, RejectBlock, c.RejectPolicy)
	}
	return nil
}
