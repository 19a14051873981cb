// Package detector provides the hand landmark data model and the tracker
// interfaces that produce it.
package detector

import (
	"errors"
	"fmt"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels as reported by the tracker.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// ErrInvalidHand is returned when a hand does not carry exactly NumLandmarks points.
var ErrInvalidHand = errors.New("invalid hand")

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandFrame is one detected hand in a captured frame.
type HandFrame struct {
	Handedness string    `json:"handedness"` // "Left" or "Right", as labelled by the tracker
	Score      float64   `json:"score"`
	Landmarks  []Point3D `json:"landmarks"`

	// TimestampMs is the capture time, equal to the enclosing frame's.
	TimestampMs float64 `json:"timestamp_ms"`
}

// MultiHandFrame holds every hand captured at the same instant.
type MultiHandFrame struct {
	TimestampMs float64     `json:"timestamp_ms"`
	Hands       []HandFrame `json:"hands"`
}

// Stamp sets every hand's capture time to the frame's.
func (f MultiHandFrame) Stamp() MultiHandFrame {
	for i := range f.Hands {
		f.Hands[i].TimestampMs = f.TimestampMs
	}
	return f
}

// Validate reports ErrInvalidHand unless the hand has exactly NumLandmarks points.
func (h HandFrame) Validate() error {
	if len(h.Landmarks) != NumLandmarks {
		return fmt.Errorf("%w: %d landmarks, want %d", ErrInvalidHand, len(h.Landmarks), NumLandmarks)
	}
	return nil
}

// Wrist returns the wrist landmark, or the zero point for an invalid hand.
func (h HandFrame) Wrist() Point3D {
	if len(h.Landmarks) == 0 {
		return Point3D{}
	}
	return h.Landmarks[Wrist]
}

// Clone returns a copy of the hand that shares no landmark storage.
func (h HandFrame) Clone() HandFrame {
	c := h
	c.Landmarks = append([]Point3D(nil), h.Landmarks...)
	return c
}

// Distance calculates the Euclidean distance between two 3D points.
func Distance(a, b Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Distance2D calculates the Euclidean distance between two points in the image plane.
func Distance2D(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Role is a spatial hand assignment derived from wrist x position. It is
// independent of the tracker's handedness label.
type Role int

const (
	RoleLeft Role = iota
	RoleRight
)

// Roles lists every role in a stable order.
var Roles = [...]Role{RoleLeft, RoleRight}

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleLeft:
		return "left"
	case RoleRight:
		return "right"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// MarshalText encodes the role as its name so it can key JSON objects.
func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleLeft, RoleRight:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "left":
		*r = RoleLeft
	case "right":
		*r = RoleRight
	default:
		return fmt.Errorf("unknown role %q", text)
	}
	return nil
}
