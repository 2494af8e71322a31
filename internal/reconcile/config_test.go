package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval"},
		{"zero backoff min", func(c *Config) { c.BackoffMin = 0 }, "backoff min"},
		{"max below min", func(c *Config) { c.BackoffMax = c.BackoffMin / 2 }, "backoff max"},
		{"shrinking multiplier", func(c *Config) { c.Multiplier = 0.5 }, "multiplier"},
		{"jitter above one", func(c *Config) { c.Jitter = 1.5 }, "jitter"},
		{"negative jitter", func(c *Config) { c.Jitter = -0.1 }, "jitter"},
		{"no attempts", func(c *Config) { c.MaxAttempts = 0 }, "max attempts"},
		{"zero timeout", func(c *Config) { c.ActionTimeout = 0 }, "action timeout"},
		{"unknown policy", func(c *Config) { c.RejectPolicy = "retry" }, "reject policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestConfig_BlockPolicyIsValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RejectPolicy = RejectBlock
	cfg.Interval = time.Minute
	assert.NoError(t, cfg.Validate())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "pushing", StatePushing.String())
	assert.Equal(t, "pulling", StatePulling.String())
	assert.Equal(t, "backoff_wait", StateBackoffWait.String())
	assert.Equal(t, "state(9)", State(9).String())
}
