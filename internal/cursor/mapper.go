// Package cursor maps hand positions onto a virtual mousepad.
package cursor

import (
	"errors"
	"fmt"
	"math"
)

// Point is a 2D position in normalized [0,1] space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center is the neutral cursor position.
var Center = Point{X: 0.5, Y: 0.5}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Config holds the virtual mousepad geometry.
type Config struct {
	// PadWidth and PadHeight are the extents of camera space, centered on the
	// calibration point, that map onto the full [0,1] cursor range.
	PadWidth  float64 `json:"pad_width"`
	PadHeight float64 `json:"pad_height"`

	// DeadZone is the minimum cursor movement that produces an update.
	DeadZone float64 `json:"dead_zone"`

	// InvertX and InvertY mirror the corresponding axis.
	InvertX bool `json:"invert_x"`
	InvertY bool `json:"invert_y"`
}

// DefaultConfig returns the default mousepad geometry. Axis inversion is off
// because the MediaPipe service mirrors frames before detection.
func DefaultConfig() Config {
	return Config{
		PadWidth:  0.4,
		PadHeight: 0.3,
		DeadZone:  0.004,
		InvertX:   false,
		InvertY:   false,
	}
}

// Validate checks the mousepad geometry.
func (c Config) Validate() error {
	var errs []error
	if c.PadWidth <= 0 || c.PadWidth > 1 {
		errs = append(errs, fmt.Errorf("pad_width must be in (0,1], got %v", c.PadWidth))
	}
	if c.PadHeight <= 0 || c.PadHeight > 1 {
		errs = append(errs, fmt.Errorf("pad_height must be in (0,1], got %v", c.PadHeight))
	}
	if c.DeadZone < 0 || c.DeadZone >= 1 {
		errs = append(errs, fmt.Errorf("dead_zone must be in [0,1), got %v", c.DeadZone))
	}
	return errors.Join(errs...)
}

// Mapper converts positions to cursor coordinates with a calibration offset
// and dead-zone hysteresis. Use one Mapper per hand role.
type Mapper struct {
	config Config
	center Point
	last   Point
}

// NewMapper creates a Mapper centered on the middle of the camera frame.
func NewMapper(config Config) *Mapper {
	return &Mapper{
		config: config,
		center: Center,
		last:   Center,
	}
}

// ToCursor maps pos onto the configured pad.
func (m *Mapper) ToCursor(pos Point) Point {
	return m.ToCursorWithPad(pos, m.config.PadWidth, m.config.PadHeight)
}

// ToCursorWithPad maps pos onto a pad of the given size. Movements shorter
// than the dead zone return the previous cursor unchanged.
func (m *Mapper) ToCursorWithPad(pos Point, padWidth, padHeight float64) Point {
	scaled := Point{
		X: clamp01(invert(m.config.InvertX)*(pos.X-m.center.X)/padWidth + 0.5),
		Y: clamp01(invert(m.config.InvertY)*(pos.Y-m.center.Y)/padHeight + 0.5),
	}

	if Distance(scaled, m.last) < m.config.DeadZone {
		return m.last
	}

	m.last = scaled
	return scaled
}

// SetCalibration sets the camera-space point that maps to the cursor center.
func (m *Mapper) SetCalibration(center Point) {
	m.center = center
}

// Calibration returns the current calibration center.
func (m *Mapper) Calibration() Point {
	return m.center
}

// ResetLastPosition re-anchors the dead zone at the center. Call it when the
// hand is lost so a reappearing hand is not held at a stale position.
func (m *Mapper) ResetLastPosition() {
	m.last = Center
}

// Last returns the most recently emitted cursor.
func (m *Mapper) Last() Point {
	return m.last
}

func invert(on bool) float64 {
	if on {
		return -1
	}
	return 1
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
