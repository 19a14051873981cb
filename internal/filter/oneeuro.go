// Package filter provides adaptive low-pass filtering for landmark coordinates.
package filter

import (
	"errors"
	"fmt"
	"math"
)

// minDeltaSeconds bounds dt away from zero when two samples share a timestamp.
const minDeltaSeconds = 1e-6

// Config holds the One Euro filter parameters.
type Config struct {
	// MinCutoff is the cutoff frequency in Hz used when the signal is still.
	MinCutoff float64 `json:"min_cutoff"`

	// Beta scales how much the cutoff grows with signal speed.
	Beta float64 `json:"beta"`

	// DCutoff is the fixed cutoff frequency in Hz for the derivative estimate.
	DCutoff float64 `json:"d_cutoff"`
}

// DefaultConfig returns the filter parameters tuned for 30 fps hand tracking.
func DefaultConfig() Config {
	return Config{
		MinCutoff: 1.0,
		Beta:      0.02,
		DCutoff:   1.0,
	}
}

// Validate checks that the parameters describe a usable filter.
func (c Config) Validate() error {
	var errs []error
	if c.MinCutoff <= 0 {
		errs = append(errs, fmt.Errorf("min_cutoff must be positive, got %v", c.MinCutoff))
	}
	if c.Beta < 0 {
		errs = append(errs, fmt.Errorf("beta must not be negative, got %v", c.Beta))
	}
	if c.DCutoff <= 0 {
		errs = append(errs, fmt.Errorf("d_cutoff must be positive, got %v", c.DCutoff))
	}
	return errors.Join(errs...)
}

// OneEuro is a one-pole low-pass filter whose cutoff rises with the estimated
// speed of the signal: strong smoothing while still, little lag while moving.
type OneEuro struct {
	config Config

	initialized   bool
	hasDerivative bool
	lastValue     float64
	lastTimestamp float64
	lastDeriv     float64
}

// NewOneEuro creates a filter with the given parameters.
func NewOneEuro(config Config) *OneEuro {
	return &OneEuro{config: config}
}

// Filter smooths value observed at timestampMs and returns the filtered value.
// The first sample is returned unchanged.
func (f *OneEuro) Filter(value, timestampMs float64) float64 {
	if !f.initialized {
		f.initialized = true
		f.lastValue = value
		f.lastTimestamp = timestampMs
		return value
	}

	dt := math.Max((timestampMs-f.lastTimestamp)/1000, minDeltaSeconds)
	dx := (value - f.lastValue) / dt

	prev := dx
	if f.hasDerivative {
		prev = f.lastDeriv
	}
	ad := smoothingFactor(f.config.DCutoff, dt)
	edx := ad*dx + (1-ad)*prev

	cutoff := f.config.MinCutoff + f.config.Beta*math.Abs(edx)
	a := smoothingFactor(cutoff, dt)
	out := a*value + (1-a)*f.lastValue

	f.lastValue = out
	f.lastTimestamp = timestampMs
	f.lastDeriv = edx
	f.hasDerivative = true

	return out
}

// Reset returns the filter to its first-sample state.
func (f *OneEuro) Reset() {
	f.initialized = false
	f.hasDerivative = false
	f.lastValue = 0
	f.lastTimestamp = 0
	f.lastDeriv = 0
}

// smoothingFactor computes α = r/(r+1) with r = 2π·cutoff·dt.
func smoothingFactor(cutoff, dt float64) float64 {
	r := 2 * math.Pi * cutoff * dt
	return r / (r + 1)
}
