package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand tracker implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected hands.
	// Returns an empty slice if no hands are detected. Hands are returned
	// exactly as reported; callers validate them with HandFrame.Validate.
	Detect(frame *gocv.Mat) ([]HandFrame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int `json:"max_hands"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `json:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `json:"min_tracking_confidence"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Validate checks the detection settings.
func (c Config) Validate() error {
	var errs []error
	if c.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("max_hands must be at least 1, got %d", c.MaxHands))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_confidence must be in [0,1], got %v", c.MinConfidence))
	}
	if c.MinTrackingConf < 0 || c.MinTrackingConf > 1 {
		errs = append(errs, fmt.Errorf("min_tracking_confidence must be in [0,1], got %v", c.MinTrackingConf))
	}
	return errors.Join(errs...)
}
