package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results and is safe to
// reconfigure while a tracker is running.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandFrame
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns copies of the pre-configured hands, or the error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandFrame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.hands == nil {
		return nil, nil
	}
	hands := make([]HandFrame, len(m.hands))
	for i, h := range m.hands {
		hands[i] = h.Clone()
	}
	return hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Translate returns a copy of the hand with every landmark shifted by (dx, dy).
func Translate(h HandFrame, dx, dy float64) HandFrame {
	c := h.Clone()
	for i := range c.Landmarks {
		c.Landmarks[i].X += dx
		c.Landmarks[i].Y += dy
	}
	return c
}

// Scale returns a copy of the hand scaled by factor about its wrist.
func Scale(h HandFrame, factor float64) HandFrame {
	c := h.Clone()
	w := h.Wrist()
	for i := range c.Landmarks {
		c.Landmarks[i] = Point3D{
			X: w.X + (c.Landmarks[i].X-w.X)*factor,
			Y: w.Y + (c.Landmarks[i].Y-w.Y)*factor,
			Z: w.Z + (c.Landmarks[i].Z-w.Z)*factor,
		}
	}
	return c
}

// MoveWristTo returns a copy of the hand translated so its wrist sits at (x, y).
func MoveWristTo(h HandFrame, x, y float64) HandFrame {
	w := h.Wrist()
	return Translate(h, x-w.X, y-w.Y)
}

// FistLandmarks returns a right hand with all four fingers curled into the palm
// and the thumb raised.
func FistLandmarks() HandFrame {
	p := make([]Point3D, NumLandmarks)

	p[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	p[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	p[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	p[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	p[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	p[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	p[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	p[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	p[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	p[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	p[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	p[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	p[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	p[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	p[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	p[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	p[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	p[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	p[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	p[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	p[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return HandFrame{Handedness: HandRight, Score: 0.95, Landmarks: p}
}

// OpenPalmLandmarks returns a right hand with every finger extended and the
// thumb spread to the side.
func OpenPalmLandmarks() HandFrame {
	p := make([]Point3D, NumLandmarks)

	p[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	p[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	p[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	p[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	p[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	p[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	p[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	p[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	p[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	p[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	p[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	p[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	p[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	p[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	p[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	p[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	p[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	p[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	p[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	p[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	p[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return HandFrame{Handedness: HandRight, Score: 0.95, Landmarks: p}
}

// PointLandmarks returns a right hand with the index finger extended, the
// other fingers curled and the thumb tucked against the palm.
func PointLandmarks() HandFrame {
	h := FistLandmarks()
	p := h.Landmarks

	p[ThumbCMC] = Point3D{X: 0.55, Y: 0.76, Z: 0.0}
	p[ThumbMCP] = Point3D{X: 0.58, Y: 0.72, Z: 0.0}
	p[ThumbIP] = Point3D{X: 0.58, Y: 0.68, Z: -0.01}
	p[ThumbTip] = Point3D{X: 0.56, Y: 0.66, Z: -0.02}

	p[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	p[IndexPIP] = Point3D{X: 0.55, Y: 0.58, Z: -0.01}
	p[IndexDIP] = Point3D{X: 0.55, Y: 0.46, Z: 0.0}
	p[IndexTip] = Point3D{X: 0.55, Y: 0.35, Z: 0.0}

	return h
}

// PinchLandmarks returns a right hand with the thumb tip touching the index
// tip and the remaining fingers extended.
func PinchLandmarks() HandFrame {
	h := OpenPalmLandmarks()
	p := h.Landmarks

	p[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	p[ThumbMCP] = Point3D{X: 0.60, Y: 0.70, Z: 0.03}
	p[ThumbIP] = Point3D{X: 0.62, Y: 0.62, Z: 0.03}
	p[ThumbTip] = Point3D{X: 0.62, Y: 0.55, Z: 0.02}

	p[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	p[IndexPIP] = Point3D{X: 0.58, Y: 0.58, Z: 0.0}
	p[IndexDIP] = Point3D{X: 0.61, Y: 0.54, Z: 0.0}
	p[IndexTip] = Point3D{X: 0.62, Y: 0.54, Z: 0.01}

	return h
}

// WithHandedness returns a copy of the hand relabelled as handedness.
func WithHandedness(h HandFrame, handedness string) HandFrame {
	c := h.Clone()
	c.Handedness = handedness
	return c
}
