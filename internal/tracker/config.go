package tracker

import (
	"fmt"
	"time"
)

// StatusCode is a raw goal-status value as published on the status stream.
type StatusCode int8

// Status codes used by the navigation stack's goal-status stream.
const (
	CodeIdle      StatusCode = 0
	CodeMoving    StatusCode = 2
	CodeReached   StatusCode = 4
	CodePreempted StatusCode = 6
)

// Fixed tracking constants. These are not operator-tunable.
const (
	// DefaultNoiseThreshold is the largest pose change (distance units)
	// still treated as sensor jitter.
	DefaultNoiseThreshold = 0.01
	// DefaultTickPeriod is the path sampling cadence.
	DefaultTickPeriod = 500 * time.Millisecond
)

// Config holds the constants the core runs with.
type Config struct {
	NoiseThreshold float64       // Pose changes <= this are discarded
	TickPeriod     time.Duration // How often the scheduler should call OnTick

	// Status code mapping
	IdleCode      StatusCode
	MovingCode    StatusCode
	ReachedCode   StatusCode
	PreemptedCode StatusCode
}

// DefaultConfig returns the fixed configuration.
func DefaultConfig() Config {
	return Config{
		NoiseThreshold: DefaultNoiseThreshold,
		TickPeriod:     DefaultTickPeriod,
		IdleCode:       CodeIdle,
		MovingCode:     CodeMoving,
		ReachedCode:    CodeReached,
		PreemptedCode:  CodePreempted,
	}
}

// Validate checks that the configuration values are usable.
func (c Config) Validate() error {
	if c.NoiseThreshold < 0 {
		return fmt.Errorf("noise threshold must be non-negative, got %f", c.NoiseThreshold)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %v", c.TickPeriod)
	}
	if c.ReachedCode == c.PreemptedCode {
		return fmt.Errorf("reached and preempted codes must differ, both are %d", c.ReachedCode)
	}
	return nil
}

// Signal classifies a status code. known is false for codes outside the
// four mapped values; such codes still classify as SignalOther.
func (c Config) Signal(code StatusCode) (sig Signal, known bool) {
	switch code {
	case c.ReachedCode:
		return SignalReached, true
	case c.PreemptedCode:
		return SignalPreempted, true
	case c.IdleCode, c.MovingCode:
		return SignalOther, true
	default:
		return SignalOther, false
	}
}
